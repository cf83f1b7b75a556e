package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sciforge/rangeagent/internal/core"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
	"github.com/sciforge/rangeagent/internal/fileutil"
)

// fileRemover is the default ArtifactRemover backed by the filesystem.
type fileRemover struct{}

func (fileRemover) Remove(path string) error {
	return fileutil.Remove(path)
}

// CleanupManager guarantees deterministic teardown on every exit path:
// artifacts of finished ranges are removed, queues are reset, and the worker
// process plus its notification stream are fully released. Clean is
// idempotent; it is invoked once on the normal path and again, best-effort,
// when the control loop fails.
type CleanupManager struct {
	pending  *pendingQueue
	audit    *auditLog
	stageout *StageOutScheduler
	worker   core.WorkerProcess
	remover  core.ArtifactRemover

	drainInterval time.Duration
	logger        *slog.Logger
}

// Clean performs the full teardown. Removal failures are logged and
// swallowed; they never escalate.
func (c *CleanupManager) Clean(ctx context.Context) {
	for _, msg := range c.audit.Snapshot() {
		if !msg.Finished() || msg.Output == "" {
			continue
		}
		c.logger.InfoContext(ctx, "removing staged artifact", "range_id", msg.ID, "path", msg.Output)
		if err := c.remover.Remove(msg.Output); err != nil {
			rerr := agenterrors.ArtifactRemoval("remove staged artifact", err)
			c.logger.ErrorContext(ctx, "artifact removal failed",
				"range_id", msg.ID, "path", msg.Output, "error", rerr)
		}
	}

	c.pending.Reset()
	c.audit.Reset()
	c.stageout.Reset()

	if c.worker != nil && c.worker.HasStarted() {
		c.worker.Stop()
		for c.worker.IsAlive() {
			time.Sleep(c.drainInterval)
		}
		if err := c.worker.Close(); err != nil {
			c.logger.WarnContext(ctx, "release worker stream", "error", err)
		}
	}
}
