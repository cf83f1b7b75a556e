package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sciforge/rangeagent/config"
	"github.com/sciforge/rangeagent/internal/bootstrap"
	"github.com/sciforge/rangeagent/internal/service"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	code, err := run(ctx, logger)
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
	}
	os.Exit(code) //nolint:forbidigo // Main entrypoint propagates the worker exit status.
}

func run(ctx context.Context, logger *slog.Logger) (int, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return 1, err
	}

	logStartupInfo(ctx, logger, &cfg)

	agent, err := bootstrap.BuildAgent(ctx, cfg, logger)
	if err != nil {
		return 1, err
	}
	defer agent.Close(ctx)

	runErr := agent.Run(ctx)

	code, ok := agent.Executor.ExitCode()
	if !ok {
		code = service.FailureExitCode
	}
	logger.InfoContext(ctx, "agent run complete",
		"job_id", agent.Job.JobID,
		"exit_code", code,
		"events_reported", agent.Job.NEvents())

	if runErr != nil && code == 0 {
		code = service.FailureExitCode
	}
	return code, runErr
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AgentConfig) {
	logger.InfoContext(ctx, "starting rangeagent",
		"job_id", cfg.JobID,
		"reporter_url", cfg.Reporter.BaseURL,
		"poll_interval", cfg.Executor.PollInterval.String(),
		"min_stageout_gap", cfg.Executor.MinStageOutGap.String(),
		"journal_enabled", cfg.Journal.Enabled,
		"dedup_enabled", cfg.Dedup.Enabled)
}
