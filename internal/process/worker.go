// Package process manages the lifecycle of one external transcoder
// subprocess: spawn, continuous stderr drain, graceful stop with bounded
// kill escalation, and exit observation.
package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// LogParser parses a diagnostic line and returns the log level and message.
// Used to extract structured log info from transcoder stderr output.
type LogParser func(line string) (level, msg string)

// Worker is one running transcoder subprocess. It is owned by the
// supervisor's process registry; other components observe liveness only
// through the binding store.
type Worker struct {
	uid    string
	binary string
	args   []string

	cmd          *exec.Cmd
	logger       *slog.Logger
	outputLogger *slog.Logger // logger for subprocess output (nil = use logger)
	logParser    LogParser    // parses stderr lines for log level (nil = no parsing)

	startedAt time.Time
	done      chan struct{}
	exitErr   error
	stopOnce  sync.Once

	gracefulTimeout time.Duration // grace before escalating to SIGKILL
	killTimeout     time.Duration // wait after SIGKILL before giving up
}

// NewWorker creates a worker for the given binding uid. Start must be called
// before any other method.
func NewWorker(uid, binary string, args []string, logger *slog.Logger) *Worker {
	return &Worker{
		uid:             uid,
		binary:          binary,
		args:            args,
		logger:          logger,
		done:            make(chan struct{}),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetLogParser sets a custom logger and log parser for subprocess output.
func (w *Worker) SetLogParser(logger *slog.Logger, parser LogParser) {
	w.outputLogger = logger
	w.logParser = parser
}

// SetStopTimeouts overrides the graceful and kill escalation timeouts.
func (w *Worker) SetStopTimeouts(graceful, kill time.Duration) {
	w.gracefulTimeout = graceful
	w.killTimeout = kill
}

// Start spawns the subprocess and begins draining its diagnostic stream.
// The drain runs for the life of the process so a full stderr buffer can
// never stall the worker.
func (w *Worker) Start() error {
	cmd := exec.Command(w.binary, w.args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	w.cmd = cmd
	w.startedAt = time.Now()
	w.logger.Info("Worker started", "uid", w.uid, "pid", cmd.Process.Pid)

	go func() {
		w.drain(stderr)
		w.exitErr = cmd.Wait()
		close(w.done)
		w.logger.Info("Worker exited", "uid", w.uid, "exit_code", exitCodeFromError(w.exitErr))
	}()

	return nil
}

// PID returns the subprocess pid.
func (w *Worker) PID() int {
	if w.cmd == nil || w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// StartedAt returns when the subprocess was spawned.
func (w *Worker) StartedAt() time.Time {
	return w.startedAt
}

// Done is closed when the subprocess has exited and its output is drained.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Alive reports whether the subprocess is still running.
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the subprocess exit error. Only meaningful once Done is
// closed.
func (w *Worker) ExitErr() error {
	return w.exitErr
}

// Stop sends a graceful termination signal and returns immediately. If the
// process ignores it, a background task escalates to SIGKILL after the grace
// period. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cmd == nil || w.cmd.Process == nil {
			return
		}
		w.logger.Info("Stopping worker", "uid", w.uid, "pid", w.cmd.Process.Pid)
		if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			w.logger.Warn("Failed to send SIGTERM", "uid", w.uid, "error", err)
		}
		go w.escalate()
	})
}

// escalate force-kills the subprocess if it outlives the grace period.
func (w *Worker) escalate() {
	select {
	case <-w.done:
		return
	case <-time.After(w.gracefulTimeout):
	}

	w.logger.Warn("Graceful stop timed out, killing worker", "uid", w.uid, "timeout", w.gracefulTimeout)
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		w.logger.Error("Failed to kill worker", "uid", w.uid, "error", err)
	}

	select {
	case <-w.done:
	case <-time.After(w.killTimeout):
		w.logger.Error("Worker did not exit after kill signal", "uid", w.uid)
	}
}

// drain forwards each diagnostic line to the logging collaborator at the
// level extracted by the parser.
func (w *Worker) drain(reader io.Reader) {
	logger := w.outputLogger
	if logger == nil {
		logger = w.logger
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		level, msg := "error", line
		if w.logParser != nil {
			level, msg = w.logParser(line)
		}

		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg, "uid", w.uid)
		case "warning":
			logger.Warn(msg, "uid", w.uid)
		case "verbose", "debug", "trace":
			logger.Debug(msg, "uid", w.uid)
		default:
			logger.Info(msg, "uid", w.uid)
		}
	}

	if err := scanner.Err(); err != nil {
		w.logger.Warn("Error reading worker output", "uid", w.uid, "error", err)
	}
}

// exitCodeFromError extracts the exit code from a Wait error. Returns 0 for
// nil, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
