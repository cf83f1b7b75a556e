package payload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sciforge/rangeagent/internal/domain/model"
	"github.com/sciforge/rangeagent/internal/fileutil"
)

// FileRangeSource hands out event ranges from a pre-staged descriptor file.
// The file holds one JSON array of descriptors; ranges are dispensed in order
// and each range is handed out at most once. An exhausted source returns an
// empty slice, which the worker treats as end of work.
type FileRangeSource struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []model.EventRangeDescriptor
	served int
}

// NewFileRangeSource loads the descriptor file eagerly so a malformed file
// fails the run at startup instead of mid-execution.
func NewFileRangeSource(path string, logger *slog.Logger) (*FileRangeSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var descriptors []model.EventRangeDescriptor
	if err := fileutil.ReadJSON(path, &descriptors); err != nil {
		return nil, fmt.Errorf("load event ranges from %s: %w", path, err)
	}

	logger.Info("event ranges loaded", "path", path, "count", len(descriptors))
	return &FileRangeSource{
		logger: logger.With("component", "range_source"),
		queue:  descriptors,
	}, nil
}

// NextRanges returns up to n descriptors.
func (s *FileRangeSource) NextRanges(ctx context.Context, n int) ([]model.EventRangeDescriptor, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.queue) {
		n = len(s.queue)
	}
	out := s.queue[:n]
	s.queue = s.queue[n:]
	s.served += n

	s.logger.InfoContext(ctx, "ranges dispensed", "count", n, "remaining", len(s.queue))
	return out, nil
}

// Remaining reports how many ranges are still undispensed.
func (s *FileRangeSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
