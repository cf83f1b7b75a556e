package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
	"github.com/sciforge/rangeagent/internal/observability/metrics"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
)

// OutcomeRouter classifies incoming outcome messages and dispatches them to
// the correct downstream path: failures go to the FailureReporter at once,
// finished ranges queue for the next stage-out flush. Handle may be invoked
// from the worker's stream goroutine concurrently with supervisor drains.
type OutcomeRouter struct {
	pending  *pendingQueue
	audit    *auditLog
	failures *FailureReporter
	jobs     core.JobProvider

	// Optional collaborators.
	seen    core.SeenRangeStore
	seenTTL time.Duration
	journal core.OutcomeJournal

	logger  *slog.Logger
	metrics statsd.Sink
}

// Handle processes one outcome message from the worker.
func (r *OutcomeRouter) Handle(ctx context.Context, msg model.OutcomeMessage) {
	job := r.jobs.GetJob()
	r.logger.InfoContext(ctx, "handling outcome message",
		"job_id", job.JobID, "range_id", msg.ID, "status", msg.Status)

	// Audit first, unconditionally: cleanup bookkeeping must cover every
	// message regardless of classification.
	r.audit.Append(msg)
	metrics.EmitOutcome(r.metrics, string(msg.Status))
	r.recordJournal(ctx, job.JobID, msg)

	if msg.Failed() {
		if err := r.failures.Report(ctx, []model.OutcomeMessage{msg}); err != nil {
			r.logger.ErrorContext(ctx, "failure report not delivered",
				"range_id", msg.ID, "error", err)
		}
		return
	}

	if r.isDuplicate(ctx, job.JobID, msg.ID) {
		r.logger.WarnContext(ctx, "dropping duplicate finished range", "range_id", msg.ID)
		return
	}
	r.pending.Push(msg)
}

// recordJournal persists the outcome when a journal is configured. Journal
// failures never influence routing.
func (r *OutcomeRouter) recordJournal(ctx context.Context, jobID string, msg model.OutcomeMessage) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, jobID, msg); err != nil {
		r.logger.WarnContext(ctx, "journal outcome failed", "range_id", msg.ID, "error", err)
	}
}

// isDuplicate consults the optional dedup store. Store errors fail open: a
// duplicate report is preferable to a lost one.
func (r *OutcomeRouter) isDuplicate(ctx context.Context, jobID, rangeID string) bool {
	if r.seen == nil {
		return false
	}
	seen, err := r.seen.MarkSeen(ctx, jobID, rangeID, r.seenTTL)
	if err != nil {
		r.logger.WarnContext(ctx, "dedup store unavailable", "range_id", rangeID, "error", err)
		return false
	}
	return seen
}
