package process

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestWorker creates a worker running sh -c script with short timeouts.
func newTestWorker(script string) *Worker {
	w := NewWorker("test", "sh", []string{"-c", script}, testLogger())
	w.SetStopTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return w
}

// waitDone waits for the worker to exit, failing the test on timeout.
func waitDone(t *testing.T, w *Worker, timeout time.Duration) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for worker to exit")
	}
}

func TestStartAndExit(t *testing.T) {
	w := newTestWorker("exit 0")
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, w, time.Second)

	if w.Alive() {
		t.Error("Alive() true after exit")
	}
	if w.ExitErr() != nil {
		t.Errorf("ExitErr = %v, want nil", w.ExitErr())
	}
}

func TestGracefulStop(t *testing.T) {
	w := newTestWorker(`trap 'exit 0' TERM; while :; do sleep 0.1; done`)
	w.SetStopTimeouts(500*time.Millisecond, 100*time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	w.Stop()
	waitDone(t, w, time.Second)

	if w.ExitErr() != nil {
		t.Errorf("ExitErr = %v, want clean exit", w.ExitErr())
	}
}

func TestKillEscalation(t *testing.T) {
	// Process ignores SIGTERM; the grace period must escalate to SIGKILL.
	w := newTestWorker(`trap '' TERM; sleep 10`)
	w.SetStopTimeouts(50*time.Millisecond, 100*time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	w.Stop()
	waitDone(t, w, 2*time.Second)

	if w.ExitErr() == nil {
		t.Error("expected non-nil exit error after SIGKILL")
	}
}

func TestStopIdempotent(t *testing.T) {
	w := newTestWorker("sleep 10")
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Stop()
	w.Stop()
	waitDone(t, w, 2*time.Second)
}

func TestStderrForwardedToParser(t *testing.T) {
	w := newTestWorker(`echo "[error] boom" >&2; exit 1`)

	lines := make(chan string, 4)
	w.SetLogParser(testLogger(), func(line string) (string, string) {
		lines <- line
		return "error", line
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, w, time.Second)

	select {
	case line := <-lines:
		if line != "[error] boom" {
			t.Errorf("line = %q", line)
		}
	default:
		t.Error("stderr line never reached the parser")
	}
}

func TestAliveWhileRunning(t *testing.T) {
	w := newTestWorker("sleep 10")
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if !w.Alive() {
		t.Error("Alive() false while running")
	}
	if w.PID() <= 0 {
		t.Errorf("PID = %d", w.PID())
	}
	if w.StartedAt().IsZero() {
		t.Error("StartedAt is zero")
	}
}
