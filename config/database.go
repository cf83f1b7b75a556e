package config

import "time"

// JournalConfig contains the optional Postgres outcome journal configuration.
// The journal is disabled unless Enabled is set.
type JournalConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"rangeagent"`
	Password string `env:"PASSWORD" envDefault:"rangeagent"`
	Name     string `env:"NAME"     envDefault:"rangeagent"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'disable' for local dev, 'require' for production
}

// Sanitize applies guardrails to journal configuration values.
func (c *JournalConfig) Sanitize() {
	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// DedupConfig contains the optional Redis seen-range store configuration.
// Deduplication is an explicit layer for reporting services that are not
// idempotent on eventRangeID; it is disabled unless Enabled is set.
type DedupConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`

	// TTL bounds how long a reported range id is remembered.
	TTL time.Duration `env:"TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to dedup configuration values.
func (c *DedupConfig) Sanitize() {
	if c.Addr == "" {
		c.Enabled = false
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
}
