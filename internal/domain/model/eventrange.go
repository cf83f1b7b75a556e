// Package model defines the core data types used throughout the rangeagent
// event-range execution system.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RangeStatus represents the lifecycle status of an event range.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type RangeStatus string

const (
	// RangeStatusRequested indicates a range has been handed to the worker
	// but no outcome has been reported yet.
	RangeStatusRequested RangeStatus = "requested"
	// RangeStatusFinished indicates the worker processed the range successfully.
	RangeStatusFinished RangeStatus = "finished"
	// RangeStatusFailed indicates the worker failed to process the range.
	RangeStatusFailed RangeStatus = "failed"
	// RangeStatusFatal indicates an unrecoverable worker-side failure for the range.
	RangeStatusFatal RangeStatus = "fatal"
)

// Valid returns true if the RangeStatus is one of the known values.
func (s RangeStatus) Valid() bool {
	return s == RangeStatusRequested || s == RangeStatusFinished ||
		s == RangeStatusFailed || s == RangeStatusFatal
}

// Terminal returns true once a range can no longer transition.
func (s RangeStatus) Terminal() bool {
	return s == RangeStatusFinished || s == RangeStatusFailed || s == RangeStatusFatal
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be parsed
// from env configuration and wire messages.
func (s *RangeStatus) UnmarshalText(text []byte) error {
	v := RangeStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid RangeStatus: %q", string(text))
	}
	*s = v
	return nil
}

// EventRange is the smallest unit of dispatchable work a payload can claim and
// report on independently. Once Status is terminal the range is immutable and
// is reported at most once per classification decision.
type EventRange struct {
	ID         string        `json:"eventRangeID"`
	Status     RangeStatus   `json:"eventStatus"`
	OutputPath string        `json:"fileLocation,omitempty"`
	CPUTime    time.Duration `json:"cpuTime,omitempty"`
	WallTime   time.Duration `json:"wallTime,omitempty"`
}

// EventRangeDescriptor describes a range handed to the worker process when it
// requests work over the notification stream.
type EventRangeDescriptor struct {
	RangeID    string `json:"eventRangeID"`
	StartEvent int    `json:"startEvent"`
	LastEvent  int    `json:"lastEvent"`
	GUID       string `json:"GUID,omitempty"`
	Scope      string `json:"scope,omitempty"`
	LFN        string `json:"LFN,omitempty"`
}
