package config

import (
	"strings"
	"time"
)

// ReporterConfig contains job-update reporting service configuration.
type ReporterConfig struct {
	// BaseURL is the root of the job-management service API.
	BaseURL string `env:"REPORTER_BASE_URL" envDefault:"http://localhost:8080"`

	// Timeout bounds a single update request.
	Timeout time.Duration `env:"REPORTER_TIMEOUT" envDefault:"30s"`

	// OAuth2 client-credentials settings. Auth is disabled when ClientID is
	// empty.
	TokenURL     string `env:"REPORTER_TOKEN_URL"`
	ClientID     string `env:"REPORTER_CLIENT_ID"`
	ClientSecret string `env:"REPORTER_CLIENT_SECRET"`
	Scopes       []string `env:"REPORTER_SCOPES" envSeparator:","`
}

// Sanitize applies guardrails to reporter configuration values.
func (c *ReporterConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthEnabled reports whether OAuth2 client-credentials auth is configured.
func (c *ReporterConfig) AuthEnabled() bool {
	return c.ClientID != "" && c.TokenURL != ""
}
