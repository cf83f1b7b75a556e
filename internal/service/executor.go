package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sciforge/rangeagent/config"
	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
	"github.com/sciforge/rangeagent/internal/observability/metrics"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
)

// FailureExitCode is the sentinel exit code reported when the control loop
// fails before the worker's real exit status is known.
const FailureExitCode = -1

// ExecutorServiceOptions groups dependencies for ExecutorService.
type ExecutorServiceOptions struct {
	Worker  core.WorkerProcess // Required: worker process handle
	Updater core.JobUpdater    // Required: job-update interface
	Jobs    core.JobProvider   // Required: current job handle

	// Payload is the pre-set payload descriptor. When nil, Resolver retrieves
	// one; if neither is available the run fails as a configuration error.
	Payload  *model.PayloadDescriptor
	Resolver core.PayloadResolver

	// Ranges supplies event ranges for the worker's request hook.
	Ranges core.RangeSource

	// Optional collaborators.
	Seen    core.SeenRangeStore
	SeenTTL time.Duration
	Journal core.OutcomeJournal
	Remover core.ArtifactRemover

	Config  config.ExecutorConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ExecutorService owns the event-range execution control loop: it acquires
// the payload, supervises the worker process, drives stage-out flushes at a
// fixed cadence, and guarantees cleanup on every exit path.
type ExecutorService struct {
	worker   core.WorkerProcess
	updater  core.JobUpdater
	jobs     core.JobProvider
	payload  *model.PayloadDescriptor
	resolver core.PayloadResolver
	ranges   core.RangeSource

	pending  *pendingQueue
	audit    *auditLog
	router   *OutcomeRouter
	stageout *StageOutScheduler
	cleanup  *CleanupManager

	cfg     config.ExecutorConfig
	logger  *slog.Logger
	metrics statsd.Sink

	stopCh   chan struct{}
	stopOnce sync.Once
	exitCode atomic.Int64
	exitSet  atomic.Bool
}

// NewExecutorService wires the execution core and constructs the supervisor.
func NewExecutorService(opts ExecutorServiceOptions) (*ExecutorService, error) {
	if opts.Worker == nil {
		return nil, errors.New("WorkerProcess is required")
	}
	if opts.Updater == nil {
		return nil, errors.New("JobUpdater is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobProvider is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	failures, err := NewFailureReporter(FailureReporterOptions{
		Updater:   opts.Updater,
		ErrorCode: cfg.FailureErrorCode,
		Logger:    logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build failure reporter: %w", err)
	}

	pending := &pendingQueue{}
	audit := &auditLog{}

	remover := opts.Remover
	if remover == nil {
		remover = fileRemover{}
	}

	s := &ExecutorService{
		worker:   opts.Worker,
		updater:  opts.Updater,
		jobs:     opts.Jobs,
		payload:  opts.Payload,
		resolver: opts.Resolver,
		ranges:   opts.Ranges,
		pending:  pending,
		audit:    audit,
		cfg:      cfg,
		logger:   logger.With("component", "executor"),
		metrics:  opts.Metrics,
		stopCh:   make(chan struct{}),
	}
	s.router = &OutcomeRouter{
		pending:  pending,
		audit:    audit,
		failures: failures,
		jobs:     opts.Jobs,
		seen:     opts.Seen,
		seenTTL:  opts.SeenTTL,
		journal:  opts.Journal,
		logger:   logger.With("component", "outcome_router"),
		metrics:  opts.Metrics,
	}
	s.stageout = &StageOutScheduler{
		pending: pending,
		updater: opts.Updater,
		jobs:    opts.Jobs,
		logger:  logger.With("component", "stageout"),
		metrics: opts.Metrics,
		now:     time.Now,
	}
	s.cleanup = &CleanupManager{
		pending:       pending,
		audit:         audit,
		stageout:      s.stageout,
		worker:        opts.Worker,
		remover:       remover,
		drainInterval: cfg.DrainInterval,
		logger:        logger.With("component", "cleanup"),
	}
	return s, nil
}

// Stop raises the external stop signal. It is observed once per tick and
// routes the run through draining, forced flush, and cleanup.
func (s *ExecutorService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ExitCode returns the final exit status once Run has completed.
func (s *ExecutorService) ExitCode() (int, bool) {
	return int(s.exitCode.Load()), s.exitSet.Load()
}

func (s *ExecutorService) setExit(code int) {
	s.exitCode.Store(int64(code))
	s.exitSet.Store(true)
}

// Run executes one job. It never panics outward: any failure inside the run
// still triggers best-effort cleanup and forces the sentinel exit code.
func (s *ExecutorService) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "executor panicked",
				"panic", r, "stack", string(debug.Stack()))
			s.cleanup.Clean(ctx)
			s.setExit(FailureExitCode)
			err = agenterrors.Unclassified("executor panicked", fmt.Errorf("%v", r))
		}
		s.logger.InfoContext(ctx, "executor finished")
	}()

	if err := s.run(ctx); err != nil {
		s.logger.ErrorContext(ctx, "execute payload failed",
			"error", err, "error_class", agenterrors.CodeOf(err))
		s.cleanup.Clean(ctx)
		s.setExit(FailureExitCode)
		return err
	}
	return nil
}

func (s *ExecutorService) run(ctx context.Context) error {
	job := s.jobs.GetJob()
	logger := s.logger.With("job_id", job.JobID)

	payload, err := s.resolvePayload(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "payload acquired", "executable", payload.Executable)

	s.worker.RegisterRangeRequestHook(s.rangeRequestHook)
	s.worker.RegisterOutcomeHook(s.router.Handle)

	if err := s.worker.Start(ctx, *payload); err != nil {
		return err
	}
	pid, _ := s.worker.PID()
	logger.InfoContext(ctx, "worker process running", "pid", pid)

	s.pollLoop(ctx, logger)
	s.drain(ctx, logger)

	code, ok := s.worker.Poll()
	if !ok {
		code = FailureExitCode
	}
	s.setExit(code)
	metrics.EmitWorkerExit(s.metrics, code, ok && code == 0)
	logger.InfoContext(ctx, "run terminated", "exit_code", code)
	return nil
}

// pollLoop drives the fixed-cadence tick until the worker exits or a stop is
// observed. No tick is skipped or coalesced; flush errors are retried on the
// next tick because the failed batch stays queued.
func (s *ExecutorService) pollLoop(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var lastCode int
	var polled bool
	iteration := 0
	for s.worker.IsAlive() {
		select {
		case <-ctx.Done():
			pid, _ := s.worker.PID()
			logger.InfoContext(ctx, "context cancelled, stopping worker", "pid", pid)
			s.worker.Stop()
			return
		case <-s.stopCh:
			pid, _ := s.worker.PID()
			logger.InfoContext(ctx, "stop requested, stopping worker", "pid", pid)
			s.worker.Stop()
			return
		case <-ticker.C:
			iteration++
			if err := s.stageout.MaybeFlush(ctx, false); err != nil {
				logger.ErrorContext(ctx, "stage-out flush failed, will retry", "error", err)
			}
			if code, ok := s.worker.Poll(); ok {
				lastCode, polled = code, true
			}
			if iteration%s.cfg.HeartbeatEvery == 0 {
				pid, _ := s.worker.PID()
				logger.InfoContext(ctx, "executor running",
					"iteration", iteration, "pid", pid,
					"exit_polled", polled, "last_exit_code", lastCode,
					"pending", s.pending.Len())
			}
		}
	}
}

// drain waits for the worker to fully exit, then performs the forced final
// flush and cleanup. Cancellation never skips this path.
func (s *ExecutorService) drain(ctx context.Context, logger *slog.Logger) {
	for s.worker.IsAlive() {
		time.Sleep(s.cfg.DrainInterval)
	}
	logger.InfoContext(ctx, "worker process finished")

	if err := s.stageout.MaybeFlush(ctx, true); err != nil {
		logger.ErrorContext(ctx, "final stage-out flush failed", "error", err)
	}
	s.cleanup.Clean(ctx)
}

func (s *ExecutorService) resolvePayload(ctx context.Context) (*model.PayloadDescriptor, error) {
	if s.payload != nil {
		if err := s.payload.Validate(); err != nil {
			return nil, agenterrors.Configurationf("pre-set payload invalid: %v", err)
		}
		return s.payload, nil
	}
	if s.resolver != nil {
		payload, err := s.resolver.Retrieve(ctx)
		if err != nil {
			return nil, fmt.Errorf("retrieve payload: %w", err)
		}
		return payload, nil
	}
	return nil, agenterrors.Configuration("payload is not set and no retrieval source is configured")
}

// rangeRequestHook serves the worker's event-range requests.
func (s *ExecutorService) rangeRequestHook(ctx context.Context, n int) ([]model.EventRangeDescriptor, error) {
	if s.ranges == nil {
		return nil, nil
	}
	return s.ranges.NextRanges(ctx, n)
}
