// Package worker wraps the external payload process: lifecycle control plus
// the notification stream carrying event-range requests and outcomes.
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sciforge/rangeagent/internal/core"
	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
)

// Stream messages from the worker are newline-delimited JSON on its stdout.
// A "ranges" message asks for more work; anything else is parsed as an
// outcome notification. The reply to a ranges request is one JSON array of
// range descriptors on the worker's stdin.
type streamRequest struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

const streamTypeRanges = "ranges"

// Options configures a worker Handle.
type Options struct {
	Logger *slog.Logger

	// RangesPerRequest caps descriptors handed out per request.
	RangesPerRequest int

	// StopGracePeriod bounds how long a stopped worker may linger before the
	// process group is killed.
	StopGracePeriod time.Duration

	// LogFile receives the payload's stderr. Relative paths resolve against
	// the payload workdir.
	LogFile string
}

// Handle is the lifecycle wrapper around one payload process. Hooks must be
// registered before Start. Only the execution supervisor and the cleanup path
// may call Stop or block on termination.
type Handle struct {
	logger           *slog.Logger
	rangesPerRequest int
	stopGrace        time.Duration
	logFileName      string

	rangeHook   core.RangeRequestHook
	outcomeHook core.OutcomeHook

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	logFile  *os.File
	started  bool
	exited   bool
	exitCode int
	closed   bool

	readerDone chan struct{}
}

// New constructs a Handle.
func New(opts Options) *Handle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perRequest := opts.RangesPerRequest
	if perRequest < 1 {
		perRequest = 1
	}
	grace := opts.StopGracePeriod
	if grace <= 0 {
		grace = 60 * time.Second
	}
	return &Handle{
		logger:           logger.With("component", "worker_handle"),
		rangesPerRequest: perRequest,
		stopGrace:        grace,
		logFileName:      opts.LogFile,
		readerDone:       make(chan struct{}),
	}
}

// RegisterRangeRequestHook wires the event-range request callback.
func (h *Handle) RegisterRangeRequestHook(hook core.RangeRequestHook) {
	h.rangeHook = hook
}

// RegisterOutcomeHook wires the outcome notification callback.
func (h *Handle) RegisterOutcomeHook(hook core.OutcomeHook) {
	h.outcomeHook = hook
}

// Start launches the payload process and begins serving its notification
// stream. A spawn error is a LaunchFailure.
func (h *Handle) Start(ctx context.Context, payload model.PayloadDescriptor) error {
	if err := payload.Validate(); err != nil {
		return agenterrors.LaunchFailure("invalid payload descriptor", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return agenterrors.LaunchFailure("worker already started", nil)
	}

	cmd := exec.Command(payload.Executable, payload.Args...)
	cmd.Dir = payload.WorkDir
	cmd.Env = buildEnv(payload.Env)
	// Own process group so Stop can signal payload children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	logFile, err := h.openLogFile(payload)
	if err != nil {
		return agenterrors.LaunchFailure("open worker log file", err)
	}
	cmd.Stderr = logFile

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logFile.Close()
		return agenterrors.LaunchFailure("open worker stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logFile.Close()
		return agenterrors.LaunchFailure("open worker stdout", err)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return agenterrors.LaunchFailure(fmt.Sprintf("spawn worker %s", payload.Executable), err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.logFile = logFile
	h.started = true

	h.logger.InfoContext(ctx, "worker started", "pid", cmd.Process.Pid, "executable", payload.Executable)

	go h.readLoop(ctx, stdout)
	go h.waitLoop()
	return nil
}

func (h *Handle) openLogFile(payload model.PayloadDescriptor) (*os.File, error) {
	name := payload.LogFile
	if name == "" {
		name = h.logFileName
	}
	if name == "" {
		name = "payload.log"
	}
	if !filepath.IsAbs(name) && payload.WorkDir != "" {
		name = filepath.Join(payload.WorkDir, name)
	}
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// readLoop consumes the notification stream until the worker closes stdout.
// Malformed lines are logged and dropped; they never abort the run.
func (h *Handle) readLoop(ctx context.Context, stdout io.Reader) {
	defer close(h.readerDone)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req streamRequest
		if err := json.Unmarshal(line, &req); err == nil && req.Type == streamTypeRanges {
			h.serveRanges(ctx, req.Count)
			continue
		}

		msg, err := model.ParseOutcome(line)
		if err != nil {
			perr := agenterrors.MessageParse("malformed outcome message", err)
			h.logger.WarnContext(ctx, "dropping malformed worker message",
				"error", perr, "line", truncate(string(line), 256))
			continue
		}
		if h.outcomeHook != nil {
			h.outcomeHook(ctx, msg)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		h.logger.WarnContext(ctx, "worker stream read ended", "error", err)
	}
}

// serveRanges answers one range request on the worker's stdin.
func (h *Handle) serveRanges(ctx context.Context, count int) {
	if h.rangeHook == nil {
		h.logger.WarnContext(ctx, "range request received but no hook registered")
		return
	}
	if count < 1 || count > h.rangesPerRequest {
		count = h.rangesPerRequest
	}

	ranges, err := h.rangeHook(ctx, count)
	if err != nil {
		h.logger.ErrorContext(ctx, "range request hook failed", "error", err)
		ranges = nil
	}
	if ranges == nil {
		ranges = []model.EventRangeDescriptor{}
	}

	reply, err := json.Marshal(ranges)
	if err != nil {
		h.logger.ErrorContext(ctx, "encode range reply", "error", err)
		return
	}

	h.mu.Lock()
	stdin := h.stdin
	h.mu.Unlock()
	if stdin == nil {
		return
	}
	if _, err := stdin.Write(append(reply, '\n')); err != nil {
		h.logger.WarnContext(ctx, "write range reply", "error", err)
	}
}

// waitLoop reaps the process and records its exit status. Wait closes the
// stdout pipe, so the reader must drain to EOF first or buffered outcome
// messages would be lost.
func (h *Handle) waitLoop() {
	<-h.readerDone
	err := h.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	h.mu.Lock()
	h.exitCode = code
	h.exited = true
	h.mu.Unlock()
}

// IsAlive is a non-blocking liveness probe.
func (h *Handle) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.exited
}

// Poll is a non-blocking exit-status check; ok is false while still running.
func (h *Handle) Poll() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exited {
		return 0, false
	}
	return h.exitCode, true
}

// HasStarted reports whether the payload has been launched.
func (h *Handle) HasStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// PID returns the worker's process id once started.
func (h *Handle) PID() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.cmd == nil || h.cmd.Process == nil {
		return 0, false
	}
	return h.cmd.Process.Pid, true
}

// Stop requests graceful termination without blocking. The process group
// receives SIGTERM now and SIGKILL after the grace period if it lingers.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.exited || h.cmd == nil || h.cmd.Process == nil {
		return
	}

	pid := h.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		h.logger.Warn("signal worker", "pid", pid, "error", err)
	}

	time.AfterFunc(h.stopGrace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.exited {
			return
		}
		h.logger.Warn("worker ignored SIGTERM, killing", "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			h.logger.Warn("kill worker", "pid", pid, "error", err)
		}
	})
}

// Close releases the notification stream resources. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.stdin != nil {
		if err := h.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close worker stdin: %w", err))
		}
		h.stdin = nil
	}
	if h.logFile != nil {
		if err := h.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close worker log: %w", err))
		}
		h.logFile = nil
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
