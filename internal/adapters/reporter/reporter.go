// Package reporter implements the job-update client for the remote
// job-management service.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/sciforge/rangeagent/config"
	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
)

const maxErrorBodyBytes = 4 * 1024 // keep service error snippets bounded in logs

// Options configures the reporting client.
type Options struct {
	Config config.ReporterConfig
	JobID  string
	Logger *slog.Logger

	// HTTPClient overrides the transport, mainly for tests. When nil a client
	// is built from Config (including OAuth2 client credentials if set).
	HTTPClient *http.Client
}

// Client posts event-range update reports to the job-update interface.
// Transmission failures surface as StageOutTransmission errors; retrying a
// failed batch is the caller's policy, not the client's.
type Client struct {
	base   string
	jobID  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient constructs a reporting client.
func NewClient(opts Options) (*Client, error) {
	if opts.Config.BaseURL == "" {
		return nil, errors.New("reporter base URL is required")
	}
	if opts.JobID == "" {
		return nil, errors.New("job id is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = buildHTTPClient(opts.Config)
	}

	return &Client{
		base:   opts.Config.BaseURL,
		jobID:  opts.JobID,
		http:   hc,
		logger: logger.With("component", "reporter"),
	}, nil
}

func buildHTTPClient(cfg config.ReporterConfig) *http.Client {
	if !cfg.AuthEnabled() {
		return &http.Client{Timeout: cfg.Timeout}
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	hc := cc.Client(context.Background())
	hc.Timeout = cfg.Timeout
	return hc
}

// UpdateEvents transmits one update report (success batch or failure report)
// for the client's job.
func (c *Client) UpdateEvents(ctx context.Context, req model.UpdateRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode update request: %w", err)
	}

	url := c.base + "/jobs/" + c.jobID + "/eventranges"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return agenterrors.StageOutTransmission("post event range update", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "close update response body", "error", cerr)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return agenterrors.StageOutTransmission(
			fmt.Sprintf("event range update rejected: status %d: %s", resp.StatusCode, string(snippet)), nil)
	}

	c.logger.DebugContext(ctx, "event range update accepted",
		"version", req.Version, "elapsed", time.Since(start))
	return nil
}
