// Package supervisor runs the reconciliation loop: it reads every binding's
// desired status from the store, drives workers through the status state
// machine, debounces crash recovery, and reaps orphan transcoder processes.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fencecast/internal/encoders"
	"fencecast/internal/events"
	"fencecast/internal/ffmpeg"
	"fencecast/internal/logging"
	"fencecast/internal/process"
	"fencecast/internal/retry"
	"fencecast/internal/store"
)

// Config tunes the reconciliation loop.
type Config struct {
	// Interval between reconcile ticks.
	Interval time.Duration

	// FailureThreshold is the number of consecutive ticks a started worker
	// must be observed missing before a restart is issued. A single missed
	// observation never triggers recovery.
	FailureThreshold int

	// StartupGrace is how long a freshly spawned worker must survive before
	// the launch counts as successful.
	StartupGrace time.Duration

	// LaunchRetry bounds launch attempts for one reconcile step.
	LaunchRetry retry.Policy

	// FFmpegPath is the transcoder binary.
	FFmpegPath string

	// UseHardware enables the hardware encoder when the probe found one.
	UseHardware bool
}

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = 2 * time.Second
	}
	if c.LaunchRetry.MaxAttempts <= 0 {
		c.LaunchRetry.MaxAttempts = 5
	}
	if c.LaunchRetry.Delay <= 0 {
		c.LaunchRetry.Delay = 5 * time.Second
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	return c
}

// Supervisor owns the process registry and is the only writer of the
// running statuses (starting, started, stopping, restarting).
type Supervisor struct {
	store  *store.Store
	bus    *events.Bus
	caps   encoders.Capabilities
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	workers  map[string]*process.Worker
	inflight map[string]bool
	failures map[string]int

	// newWorker builds a worker for a binding; replaced in tests.
	newWorker func(uid string, args []string) *process.Worker

	kick chan struct{}
	wg   sync.WaitGroup
}

// New creates a supervisor over the given store.
func New(st *store.Store, bus *events.Bus, caps encoders.Capabilities, cfg Config) *Supervisor {
	s := &Supervisor{
		store:    st,
		bus:      bus,
		caps:     caps,
		cfg:      cfg.withDefaults(),
		logger:   logging.GetLogger("supervisor"),
		workers:  make(map[string]*process.Worker),
		inflight: make(map[string]bool),
		failures: make(map[string]int),
		kick:     make(chan struct{}, 1),
	}
	ffmpegLogger := logging.GetLogger("ffmpeg")
	s.newWorker = func(uid string, args []string) *process.Worker {
		w := process.NewWorker(uid, s.cfg.FFmpegPath, args, s.logger)
		w.SetLogParser(ffmpegLogger, ffmpeg.ParseLogLevel)
		return w
	}
	return s
}

// Kick requests an immediate reconcile without waiting out the tick.
// Non-blocking: if one is already pending, this is a no-op.
func (s *Supervisor) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run executes the reconcile loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("Supervisor started",
		"interval", s.cfg.Interval,
		"failure_threshold", s.cfg.FailureThreshold,
		"hardware", s.cfg.UseHardware && s.caps.HasHardware,
		"device", s.caps.DeviceName)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Supervisor stopping")
			return
		case <-ticker.C:
			s.reconcile(ctx)
		case <-s.kick:
			s.reconcile(ctx)
		}
	}
}

// reconcile runs one tick: reap orphans, stop workers whose binding was
// removed, then drive every binding independently. Each uid's work runs in
// its own goroutine behind an in-flight guard so one slow spawn never delays
// the others, and one uid's failure never aborts the tick.
func (s *Supervisor) reconcile(ctx context.Context) {
	bindings := s.store.List()

	valid := make(map[string]bool, len(bindings))
	for uid := range bindings {
		valid[uid] = true
	}

	s.reapOrphans(valid)
	s.sweepRemoved(valid)

	for uid, b := range bindings {
		if !s.begin(uid) {
			continue
		}
		s.wg.Add(1)
		go func(uid string, b store.Binding) {
			defer s.wg.Done()
			defer s.end(uid)
			if err := s.step(ctx, b); err != nil {
				s.logger.Error("Reconcile step failed", "uid", uid, "status", b.Status, "error", err)
			}
		}(uid, b)
	}
}

// step drives one binding through the state machine.
func (s *Supervisor) step(ctx context.Context, b store.Binding) error {
	switch actionFor(b.Status) {
	case actionLaunch:
		if err := s.setStatus(b.UID, b.Status, store.StatusStarting); err != nil {
			return err
		}
		if err := s.launch(ctx, b); err != nil {
			return err
		}
		return s.setStatus(b.UID, store.StatusStarting, store.StatusStarted)

	case actionRestart:
		if err := s.setStatus(b.UID, b.Status, store.StatusRestarting); err != nil {
			return err
		}
		s.stopWorker(b.UID)
		if err := s.launch(ctx, b); err != nil {
			return err
		}
		return s.setStatus(b.UID, store.StatusRestarting, store.StatusStarted)

	case actionStop:
		if err := s.setStatus(b.UID, b.Status, store.StatusStopping); err != nil {
			return err
		}
		s.stopWorker(b.UID)
		return s.setStatus(b.UID, store.StatusStopping, store.StatusStopped)

	case actionCheck:
		s.checkLiveness(b.UID)
		return nil

	default:
		// A stopped binding must not have a live worker; this covers a stop
		// intent that won the race against a concurrent start.
		if b.Status == store.StatusStopped {
			s.stopWorker(b.UID)
		}
		return nil
	}
}

// launch builds the worker invocation and starts it under the retry policy.
// A worker that dies within the startup grace window counts as a failed
// attempt. Exhausting the budget flags the binding for another restart
// cycle and reports the error.
func (s *Supervisor) launch(ctx context.Context, b store.Binding) error {
	if b.SourceURL == "" {
		return fmt.Errorf("binding %s has no source url", b.UID)
	}

	args := ffmpeg.BuildArgs(&ffmpeg.Params{
		BinaryPath:     s.cfg.FFmpegPath,
		SourceURL:      b.SourceURL,
		WatermarkPaths: b.Watermarks.Paths(),
		OutputPlain:    b.OutputPlain,
		OutputOverlay:  b.OutputOverlay,
		HardwareEncode: s.cfg.UseHardware && s.caps.HasHardware,
	})

	if err := os.MkdirAll(filepath.Dir(b.OutputPlain), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	err := s.cfg.LaunchRetry.Do(ctx, s.logger, "launch "+b.UID, func() error {
		w := s.newWorker(b.UID, args)
		if err := w.Start(); err != nil {
			return err
		}

		select {
		case <-w.Done():
			return fmt.Errorf("worker exited during startup: %v", w.ExitErr())
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-time.After(s.cfg.StartupGrace):
		}

		s.registerWorker(b.UID, w)
		return nil
	})
	if err != nil {
		from := store.StatusStarting
		if cur, ok := s.store.Get(b.UID); ok {
			from = cur.Status
		}
		if statusErr := s.setStatus(b.UID, from, store.StatusNeedRestart); statusErr != nil {
			s.logger.Error("Failed to flag binding after launch failure", "uid", b.UID, "error", statusErr)
		}
		return err
	}

	s.logger.Info("Worker launched", "uid", b.UID)
	return nil
}

// checkLiveness debounces crash recovery: only after FailureThreshold
// consecutive missing observations does a started binding flip to
// need_restart.
func (s *Supervisor) checkLiveness(uid string) {
	s.mu.Lock()
	w := s.workers[uid]
	alive := w != nil && w.Alive()
	if alive {
		s.failures[uid] = 0
		s.mu.Unlock()
		return
	}
	s.failures[uid]++
	observations := s.failures[uid]
	threshold := s.cfg.FailureThreshold
	if observations >= threshold {
		s.failures[uid] = 0
		delete(s.workers, uid)
	}
	s.mu.Unlock()

	if observations < threshold {
		s.logger.Warn("Worker process missing", "uid", uid,
			"observations", observations, "threshold", threshold)
		return
	}

	s.logger.Error("Worker crashed, scheduling restart", "uid", uid, "observations", observations)
	s.bus.Publish(events.WorkerCrashedEvent{
		UID:          uid,
		Observations: observations,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.setStatus(uid, store.StatusStarted, store.StatusNeedRestart); err != nil {
		s.logger.Error("Failed to flag crashed binding", "uid", uid, "error", err)
	}
}

// stopWorker removes the handle from the registry immediately and asks the
// process to terminate; escalation to a forced kill happens in the worker's
// own background task, never blocking the loop.
func (s *Supervisor) stopWorker(uid string) {
	s.mu.Lock()
	w := s.workers[uid]
	delete(s.workers, uid)
	delete(s.failures, uid)
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// sweepRemoved stops workers whose binding no longer exists: unbinding must
// terminate the live process.
func (s *Supervisor) sweepRemoved(valid map[string]bool) {
	s.mu.Lock()
	var stale []string
	for uid := range s.workers {
		if !valid[uid] {
			stale = append(stale, uid)
		}
	}
	s.mu.Unlock()

	for _, uid := range stale {
		s.logger.Info("Binding removed, stopping worker", "uid", uid)
		s.stopWorker(uid)
	}
}

// StopAll waits for in-flight steps and gracefully stops every worker.
// Called on daemon shutdown.
func (s *Supervisor) StopAll() {
	s.wg.Wait()

	s.mu.Lock()
	workers := make([]*process.Worker, 0, len(s.workers))
	for uid, w := range s.workers {
		workers = append(workers, w)
		delete(s.workers, uid)
	}
	s.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	deadline := time.After(15 * time.Second)
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-deadline:
			s.logger.Warn("Timed out waiting for workers to exit")
			return
		}
	}
}

// Running returns the uids with a live registered worker.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uids []string
	for uid, w := range s.workers {
		if w.Alive() {
			uids = append(uids, uid)
		}
	}
	return uids
}

// setStatus writes the transition to the store and announces it on the bus.
func (s *Supervisor) setStatus(uid string, from, to store.Status) error {
	if err := s.store.SetStatus(uid, to); err != nil {
		return err
	}
	s.bus.Publish(events.StatusChangedEvent{
		UID:       uid,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// begin marks uid as having work in flight; reports false if it already has.
func (s *Supervisor) begin(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[uid] {
		return false
	}
	s.inflight[uid] = true
	return true
}

func (s *Supervisor) end(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, uid)
}

// registerWorker records a live worker handle for uid.
func (s *Supervisor) registerWorker(uid string, w *process.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[uid] = w
	s.failures[uid] = 0
}
