package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sciforge/rangeagent/config"
	"github.com/sciforge/rangeagent/internal/adapters/payload"
	"github.com/sciforge/rangeagent/internal/adapters/reporter"
	workeradapter "github.com/sciforge/rangeagent/internal/adapters/worker"
	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/data"
	"github.com/sciforge/rangeagent/internal/domain/model"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
	"github.com/sciforge/rangeagent/internal/service"
)

// jobProvider serves the single job handle of this agent run.
type jobProvider struct {
	job *model.Job
}

func (p jobProvider) GetJob() *model.Job { return p.job }

// Agent holds the wired execution runtime and the infrastructure handles it
// owns.
type Agent struct {
	Executor *service.ExecutorService
	Job      *model.Job

	db          *sql.DB
	redisClient redis.UniversalClient
	metricsSink *statsd.Client
	logger      *slog.Logger
}

// BuildAgent wires configuration into a runnable agent: metrics sink,
// reporting client, worker handle, payload and range sources, plus the
// optional journal and dedup stores.
func BuildAgent(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	job := model.NewJob(cfg.JobID, cfg.Executor.MinStageOutGap)

	metricsSink := buildMetricsSink(cfg.Observability, logger)

	updater, err := reporter.NewClient(reporter.Options{
		Config: cfg.Reporter,
		JobID:  cfg.JobID,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build reporter client: %w", err)
	}

	workerHandle := workeradapter.New(workeradapter.Options{
		Logger:           logger,
		RangesPerRequest: cfg.Worker.RangesPerRequest,
		StopGracePeriod:  cfg.Worker.StopGracePeriod,
		LogFile:          cfg.Worker.LogFile,
	})

	presetPayload, resolver, err := buildPayloadSource(cfg.Worker, logger)
	if err != nil {
		return nil, err
	}

	ranges, err := buildRangeSource(cfg.Worker, logger)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		Job:         job,
		metricsSink: metricsSink,
		logger:      logger,
	}

	var journal core.OutcomeJournal
	if cfg.Journal.Enabled {
		db, dbErr := ConnectJournalDB(cfg.Journal, logger)
		if dbErr != nil {
			return nil, fmt.Errorf("connect outcome journal: %w", dbErr)
		}
		agent.db = db

		repo := data.NewOutcomeRepo(db)
		if schemaErr := repo.EnsureSchema(ctx); schemaErr != nil {
			agent.Close(ctx)
			return nil, fmt.Errorf("prepare outcome journal: %w", schemaErr)
		}
		journal = repo
	}

	var seen core.SeenRangeStore
	if cfg.Dedup.Enabled {
		client, redisErr := ConnectDedupRedis(cfg.Dedup, logger)
		if redisErr != nil {
			agent.Close(ctx)
			return nil, fmt.Errorf("connect dedup store: %w", redisErr)
		}
		agent.redisClient = client
		seen = data.NewRedisSeenRepo(client)
	}

	executor, err := service.NewExecutorService(service.ExecutorServiceOptions{
		Worker:   workerHandle,
		Updater:  updater,
		Jobs:     jobProvider{job: job},
		Payload:  presetPayload,
		Resolver: resolver,
		Ranges:   ranges,
		Seen:     seen,
		SeenTTL:  cfg.Dedup.TTL,
		Journal:  journal,
		Config:   cfg.Executor,
		Logger:   logger,
		Metrics:  metricsSink,
	})
	if err != nil {
		agent.Close(ctx)
		return nil, fmt.Errorf("build executor: %w", err)
	}
	agent.Executor = executor

	return agent, nil
}

// buildMetricsSink configures the StatsD client; emission stays disabled when
// the dial fails so metrics never block startup.
func buildMetricsSink(cfg config.ObservabilityConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.Metrics.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  "rangeagent",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// buildPayloadSource maps worker config to either a pre-set descriptor or a
// job-description resolver.
func buildPayloadSource(cfg config.WorkerConfig, logger *slog.Logger) (*model.PayloadDescriptor, core.PayloadResolver, error) {
	if cfg.Executable != "" {
		return &model.PayloadDescriptor{
			Executable: cfg.Executable,
			Args:       cfg.Args,
			WorkDir:    cfg.WorkDir,
			LogFile:    cfg.LogFile,
		}, nil, nil
	}
	if cfg.PayloadSource == "" {
		return nil, nil, nil
	}
	resolver, err := payload.NewResolver(payload.ResolverOptions{
		Source:      cfg.PayloadSource,
		CommandExpr: cfg.CommandExpr,
		ArgsExpr:    cfg.ArgsExpr,
		WorkDir:     cfg.WorkDir,
		LogFile:     cfg.LogFile,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build payload resolver: %w", err)
	}
	return nil, resolver, nil
}

func buildRangeSource(cfg config.WorkerConfig, logger *slog.Logger) (core.RangeSource, error) {
	if cfg.RangesSource == "" {
		return nil, nil
	}
	source, err := payload.NewFileRangeSource(cfg.RangesSource, logger)
	if err != nil {
		return nil, fmt.Errorf("build range source: %w", err)
	}
	return source, nil
}

// Run executes the job under signal supervision. SIGINT and SIGTERM route
// through Executor.Stop so the run drains and cleans instead of dying
// mid-flush. Blocks until the run completes.
func (a *Agent) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return a.Executor.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case sig := <-quit:
			a.logger.InfoContext(gCtx, "shutdown signal received", "signal", sig.String())
			a.Executor.Stop()
		case <-gCtx.Done():
		}
		return nil
	})

	return g.Wait()
}

// Close releases infrastructure handles. Safe to call more than once.
func (a *Agent) Close(ctx context.Context) {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.ErrorContext(ctx, "close journal database failed", "error", err)
		}
		a.db = nil
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
		a.redisClient = nil
	}
	if a.metricsSink != nil {
		if err := a.metricsSink.Close(); err != nil {
			a.logger.ErrorContext(ctx, "close statsd client failed", "error", err)
		}
		a.metricsSink = nil
	}
}
