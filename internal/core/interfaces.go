// Package core defines the ports between the execution services and their
// adapters. Services depend on these interfaces, not on concrete
// implementations.
package core

import (
	"context"
	"time"

	"github.com/sciforge/rangeagent/internal/domain/model"
)

// RangeRequestHook is invoked by the worker collaborator when the payload asks
// for more work. It returns up to n event range descriptors.
type RangeRequestHook func(ctx context.Context, n int) ([]model.EventRangeDescriptor, error)

// OutcomeHook is invoked by the worker collaborator once per well-formed
// outcome notification. The invocation may originate from a goroutine other
// than the supervisor's poll loop.
type OutcomeHook func(ctx context.Context, msg model.OutcomeMessage)

// WorkerProcess is the lifecycle contract of the external worker process.
// Only the execution supervisor and the cleanup path may call Stop or block
// on termination.
type WorkerProcess interface {
	// Start launches the worker process for the given payload. Hooks must be
	// registered before Start.
	Start(ctx context.Context, payload model.PayloadDescriptor) error
	// IsAlive is a non-blocking liveness probe.
	IsAlive() bool
	// Poll is a non-blocking exit-status check; ok is false while running.
	Poll() (code int, ok bool)
	// Stop requests graceful termination without blocking; callers poll
	// IsAlive to detect completion.
	Stop()
	// PID returns the worker's process id once started.
	PID() (int, bool)
	// HasStarted reports whether the payload has been launched.
	HasStarted() bool
	// RegisterRangeRequestHook wires the event-range request callback.
	RegisterRangeRequestHook(hook RangeRequestHook)
	// RegisterOutcomeHook wires the outcome notification callback.
	RegisterOutcomeHook(hook OutcomeHook)
	// Close releases the notification channel resources. Idempotent.
	Close() error
}

// JobUpdater is the job-update interface of the remote reporting service.
type JobUpdater interface {
	UpdateEvents(ctx context.Context, req model.UpdateRequest) error
}

// JobProvider exposes the current job handle.
type JobProvider interface {
	GetJob() *model.Job
}

// PayloadResolver retrieves the payload descriptor when none was pre-set.
type PayloadResolver interface {
	Retrieve(ctx context.Context) (*model.PayloadDescriptor, error)
}

// RangeSource supplies fresh event ranges for the worker's request hook.
type RangeSource interface {
	NextRanges(ctx context.Context, n int) ([]model.EventRangeDescriptor, error)
}

// SeenRangeStore is an optional dedup layer in front of the success queue for
// reporting services that are not idempotent on eventRangeID.
type SeenRangeStore interface {
	// MarkSeen records the range id and reports whether it was seen before.
	MarkSeen(ctx context.Context, jobID, rangeID string, ttl time.Duration) (seen bool, err error)
}

// OutcomeJournal persists every terminal outcome for post-mortem inspection.
// Writes are best-effort and never influence the control loop.
type OutcomeJournal interface {
	Record(ctx context.Context, jobID string, msg model.OutcomeMessage) error
}

// ArtifactRemover removes a staged output artifact during cleanup.
type ArtifactRemover interface {
	Remove(path string) error
}
