package config

import "time"

// ExecutorConfig contains execution supervisor and stage-out configuration.
type ExecutorConfig struct {
	// PollInterval is the supervisor tick cadence while the worker runs.
	PollInterval time.Duration `env:"EXECUTOR_POLL_INTERVAL" envDefault:"5s"`

	// DrainInterval is the wait cadence while the worker finishes exiting.
	DrainInterval time.Duration `env:"EXECUTOR_DRAIN_INTERVAL" envDefault:"1s"`

	// HeartbeatEvery is the number of ticks between heartbeat log lines.
	HeartbeatEvery int `env:"EXECUTOR_HEARTBEAT_EVERY" envDefault:"60"`

	// MinStageOutGap is the minimum interval between two non-forced
	// stage-out flushes.
	MinStageOutGap time.Duration `env:"EXECUTOR_MIN_STAGEOUT_GAP" envDefault:"30s"`

	// FailureErrorCode is the error code attached to failure reports. It is a
	// placeholder pending upstream classification, kept configurable rather
	// than hard-baked.
	FailureErrorCode int `env:"EXECUTOR_FAILURE_ERROR_CODE" envDefault:"1220"`
}

// Sanitize applies guardrails to executor configuration values.
func (c *ExecutorConfig) Sanitize() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = time.Second
	}
	if c.HeartbeatEvery < 1 {
		c.HeartbeatEvery = 60
	}
	if c.MinStageOutGap < 0 {
		c.MinStageOutGap = 0
	}
	if c.FailureErrorCode <= 0 {
		c.FailureErrorCode = 1220
	}
}
