package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), testLogger(), "launch", func() error {
		calls++
		return errors.New("boom")
	})

	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), testLogger(), "launch", func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 100, Delay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, testLogger(), "launch", func() error {
			return errors.New("boom")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
