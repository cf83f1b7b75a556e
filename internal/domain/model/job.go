package model

import (
	"errors"
	"sync/atomic"
	"time"
)

// Job is the handle to the current job description exposed by the
// job-description collaborator. The event counter is mutated by stage-out
// flushes and may be read concurrently, so it is kept atomic.
type Job struct {
	JobID string

	// MinStageOutGap is the minimum interval between two non-forced
	// stage-out flushes (queue-level configuration).
	MinStageOutGap time.Duration

	nevents atomic.Int64
}

// NewJob constructs a job handle.
func NewJob(jobID string, minStageOutGap time.Duration) *Job {
	return &Job{JobID: jobID, MinStageOutGap: minStageOutGap}
}

// AddEvents increments the finished-event counter by n.
func (j *Job) AddEvents(n int) {
	j.nevents.Add(int64(n))
}

// NEvents returns the number of finished events reported so far.
func (j *Job) NEvents() int {
	return int(j.nevents.Load())
}

// PayloadDescriptor describes the external worker process to launch for one
// job run.
type PayloadDescriptor struct {
	Executable string            `json:"executable"`
	Args       []string          `json:"args,omitempty"`
	WorkDir    string            `json:"workdir,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	LogFile    string            `json:"logfile,omitempty"`
}

// Validate checks the descriptor is launchable.
func (p *PayloadDescriptor) Validate() error {
	if p == nil {
		return errors.New("payload descriptor is nil")
	}
	if p.Executable == "" {
		return errors.New("payload executable is required")
	}
	return nil
}
