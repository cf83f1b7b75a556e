package config

import "time"

// WorkerConfig contains worker payload process configuration.
type WorkerConfig struct {
	// Executable is the payload command to launch. When empty, the payload is
	// retrieved from the job description instead (see PayloadSource).
	Executable string   `env:"WORKER_EXECUTABLE"`
	Args       []string `env:"WORKER_ARGS" envSeparator:" "`

	// WorkDir is the working directory for the payload process.
	WorkDir string `env:"WORKER_WORKDIR"`

	// LogFile receives the payload's stderr stream.
	LogFile string `env:"WORKER_LOG_FILE" envDefault:"payload.log"`

	// PayloadSource is a path to the job description JSON used to retrieve
	// the payload when no executable is pre-set.
	PayloadSource string `env:"WORKER_PAYLOAD_SOURCE"`

	// RangesSource is a path to a pre-staged event range descriptor file.
	// When empty the worker's range requests are answered with end of work.
	RangesSource string `env:"WORKER_RANGES_SOURCE"`

	// CommandExpr and ArgsExpr are JMESPath expressions selecting the payload
	// command and arguments out of the job description document.
	CommandExpr string `env:"WORKER_PAYLOAD_COMMAND_EXPR" envDefault:"execCommand"`
	ArgsExpr    string `env:"WORKER_PAYLOAD_ARGS_EXPR"    envDefault:"jobPars"`

	// RangesPerRequest caps how many event ranges are handed out per worker
	// request.
	RangesPerRequest int `env:"WORKER_RANGES_PER_REQUEST" envDefault:"10"`

	// StopGracePeriod bounds how long cleanup waits for a stopped worker
	// before escalating to a kill.
	StopGracePeriod time.Duration `env:"WORKER_STOP_GRACE_PERIOD" envDefault:"60s"`
}

// Sanitize applies guardrails to worker configuration values.
func (c *WorkerConfig) Sanitize() {
	if c.RangesPerRequest < 1 {
		c.RangesPerRequest = 1
	}
	if c.StopGracePeriod < time.Second {
		c.StopGracePeriod = time.Second
	}
	if c.CommandExpr == "" {
		c.CommandExpr = "execCommand"
	}
}
