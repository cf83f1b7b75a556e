package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
	"github.com/sciforge/rangeagent/internal/observability/metrics"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
)

// FailureReporterOptions groups dependencies for FailureReporter.
type FailureReporterOptions struct {
	Updater core.JobUpdater // Required: job-update interface
	// ErrorCode is attached to every failure record. Placeholder pending
	// upstream classification; configurable, never hard-baked.
	ErrorCode int
	Logger    *slog.Logger // Optional: structured logger
	Metrics   statsd.Sink  // Optional: metrics sink
}

// FailureReporter forwards failed and fatal outcomes to the reporting service
// immediately, without batching or delay: the service may need to react to a
// failure (retry or abort policy) without latency.
type FailureReporter struct {
	updater   core.JobUpdater
	errorCode int
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewFailureReporter constructs a FailureReporter.
func NewFailureReporter(opts FailureReporterOptions) (*FailureReporter, error) {
	if opts.Updater == nil {
		return nil, errors.New("JobUpdater is required")
	}
	errorCode := opts.ErrorCode
	if errorCode <= 0 {
		errorCode = 1220
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FailureReporter{
		updater:   opts.Updater,
		errorCode: errorCode,
		logger:    logger.With("component", "failure_reporter"),
		metrics:   opts.Metrics,
	}, nil
}

// Report sends one version-0 failure report covering all given messages.
func (f *FailureReporter) Report(ctx context.Context, msgs []model.OutcomeMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	req, err := model.BuildFailedUpdate(msgs, f.errorCode)
	if err != nil {
		return fmt.Errorf("build failure report: %w", err)
	}
	if err := f.updater.UpdateEvents(ctx, req); err != nil {
		if f.metrics != nil {
			f.metrics.Count("failure.report", 1, map[string]string{"result": metrics.ResultError})
		}
		return fmt.Errorf("report %d failed ranges: %w", len(msgs), err)
	}

	if f.metrics != nil {
		f.metrics.Count("failure.report", 1, map[string]string{"result": metrics.ResultSuccess})
	}
	f.logger.InfoContext(ctx, "failed ranges reported", "count", len(msgs), "error_code", f.errorCode)
	return nil
}
