package config

// AgentConfig is the main configuration struct for the rangeagent process.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config files for
// details on available environment variables:
//   - executor.go: execution supervisor and stage-out configuration
//   - worker.go: worker payload process configuration
//   - reporter.go: job-update reporting service configuration
//   - database.go: optional outcome journal and dedup store configuration
//   - observability.go: metrics configuration
type AgentConfig struct {
	// JobID identifies the job this agent run executes. When empty a run id
	// is generated at startup.
	JobID string `env:"JOB_ID"`

	Executor ExecutorConfig
	Worker   WorkerConfig
	Reporter ReporterConfig

	Journal JournalConfig `envPrefix:"JOURNAL_"`
	Dedup   DedupConfig   `envPrefix:"DEDUP_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AgentConfig) Sanitize() {
	c.Executor.Sanitize()
	c.Worker.Sanitize()
	c.Reporter.Sanitize()
	c.Journal.Sanitize()
	c.Dedup.Sanitize()
	c.Observability.Sanitize()
}
