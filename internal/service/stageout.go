package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
	"github.com/sciforge/rangeagent/internal/observability/metrics"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
)

// StageOutScheduler accumulates finished outcomes and flushes them as one
// batch report, applying a minimum-interval throttle between non-forced
// flushes.
type StageOutScheduler struct {
	pending *pendingQueue
	updater core.JobUpdater
	jobs    core.JobProvider
	logger  *slog.Logger
	metrics statsd.Sink

	now func() time.Time

	mu        sync.Mutex
	lastFlush time.Time
	flushed   bool
}

// MaybeFlush flushes the pending queue when forced, on the first opportunity,
// or once the minimum gap since the last successful flush has elapsed. An
// empty queue is always a no-op. On transmission failure the batch is
// requeued for the next tick; it is never silently dropped.
func (s *StageOutScheduler) MaybeFlush(ctx context.Context, force bool) error {
	if s.pending.Len() == 0 {
		return nil
	}
	if !force && !s.gapElapsed() {
		return nil
	}

	batch := s.pending.Drain()
	if len(batch) == 0 {
		return nil
	}

	req, err := model.BuildFinishedUpdate(batch)
	if err != nil {
		s.pending.Requeue(batch)
		return fmt.Errorf("build stage-out report: %w", err)
	}

	start := s.now()
	if err := s.updater.UpdateEvents(ctx, req); err != nil {
		s.pending.Requeue(batch)
		werr := agenterrors.StageOutTransmission(
			fmt.Sprintf("stage-out flush of %d ranges", len(batch)), err)
		metrics.EmitFlush(s.metrics, metrics.FlushMetric{
			Ranges: len(batch), Forced: force, Duration: s.now().Sub(start), Err: werr,
		})
		return werr
	}

	job := s.jobs.GetJob()
	job.AddEvents(len(batch))

	s.mu.Lock()
	s.lastFlush = s.now()
	s.flushed = true
	s.mu.Unlock()

	metrics.EmitFlush(s.metrics, metrics.FlushMetric{
		Ranges: len(batch), Forced: force, Duration: s.now().Sub(start),
	})
	s.logger.InfoContext(ctx, "stage-out flush complete",
		"job_id", job.JobID, "ranges", len(batch), "forced", force, "total_events", job.NEvents())
	return nil
}

// gapElapsed reports whether a non-forced flush is currently allowed.
func (s *StageOutScheduler) gapElapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.flushed {
		return true
	}
	return s.now().Sub(s.lastFlush) > s.jobs.GetJob().MinStageOutGap
}

// Reset clears the throttle state. Part of cleanup.
func (s *StageOutScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Time{}
	s.flushed = false
}
