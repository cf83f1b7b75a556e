package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUpdater records every update request and can be scripted to fail the
// first n calls.
type fakeUpdater struct {
	mu       sync.Mutex
	requests []model.UpdateRequest
	failNext int
	err      error
}

func (f *fakeUpdater) UpdateEvents(_ context.Context, req model.UpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeUpdater) Requests() []model.UpdateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.UpdateRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// staticJobs serves one fixed job handle.
type staticJobs struct {
	job *model.Job
}

func (s staticJobs) GetJob() *model.Job { return s.job }

// fakeRemover records removal attempts and can fail specific paths.
type fakeRemover struct {
	mu      sync.Mutex
	removed []string
	failOn  map[string]error
}

func (f *fakeRemover) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	if err, ok := f.failOn[path]; ok {
		return err
	}
	return nil
}

func (f *fakeRemover) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removed))
	copy(out, f.removed)
	return out
}

// fakeSeen marks range ids in memory and can be forced to error.
type fakeSeen struct {
	mu   sync.Mutex
	ids  map[string]bool
	err  error
	hits int
}

func (f *fakeSeen) MarkSeen(_ context.Context, jobID, rangeID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return false, f.err
	}
	if f.ids == nil {
		f.ids = map[string]bool{}
	}
	key := jobID + ":" + rangeID
	seen := f.ids[key]
	f.ids[key] = true
	return seen, nil
}

// fakeJournal records journaled outcomes.
type fakeJournal struct {
	mu      sync.Mutex
	records []model.OutcomeMessage
	err     error
}

func (f *fakeJournal) Record(_ context.Context, _ string, msg model.OutcomeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, msg)
	return nil
}

func (f *fakeJournal) Records() []model.OutcomeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.OutcomeMessage, len(f.records))
	copy(out, f.records)
	return out
}

// fakeRanges hands out synthetic descriptors.
type fakeRanges struct {
	mu     sync.Mutex
	served int
}

func (f *fakeRanges) NextRanges(_ context.Context, n int) ([]model.EventRangeDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.served += n
	out := make([]model.EventRangeDescriptor, n)
	return out, nil
}

// fakeWorker is a scripted WorkerProcess. onStart runs synchronously inside
// Start with the registered hooks available, so tests emit outcomes before
// the poll loop begins. The worker stays alive until exit or Stop.
type fakeWorker struct {
	mu          sync.Mutex
	startErr    error
	started     bool
	alive       bool
	exitCode    int
	exited      bool
	closed      int
	stopCalls   int
	stopCode    int
	payload     model.PayloadDescriptor
	rangeHook   core.RangeRequestHook
	outcomeHook core.OutcomeHook
	onStart     func(w *fakeWorker, ctx context.Context)
}

func (w *fakeWorker) Start(ctx context.Context, payload model.PayloadDescriptor) error {
	w.mu.Lock()
	if w.startErr != nil {
		err := w.startErr
		w.mu.Unlock()
		return err
	}
	w.started = true
	w.alive = true
	w.payload = payload
	onStart := w.onStart
	w.mu.Unlock()
	if onStart != nil {
		onStart(w, ctx)
	}
	return nil
}

func (w *fakeWorker) emit(ctx context.Context, msg model.OutcomeMessage) {
	w.mu.Lock()
	hook := w.outcomeHook
	w.mu.Unlock()
	if hook != nil {
		hook(ctx, msg)
	}
}

func (w *fakeWorker) exit(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alive = false
	w.exited = true
	w.exitCode = code
}

func (w *fakeWorker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

func (w *fakeWorker) Poll() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.exited {
		return 0, false
	}
	return w.exitCode, true
}

func (w *fakeWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopCalls++
	if w.alive {
		w.alive = false
		w.exited = true
		w.exitCode = w.stopCode
	}
}

func (w *fakeWorker) PID() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return 0, false
	}
	return 4242, true
}

func (w *fakeWorker) HasStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *fakeWorker) RegisterRangeRequestHook(hook core.RangeRequestHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rangeHook = hook
}

func (w *fakeWorker) RegisterOutcomeHook(hook core.OutcomeHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomeHook = hook
}

func (w *fakeWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}
