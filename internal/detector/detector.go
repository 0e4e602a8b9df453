// Package detector watches bound configuration for drift: a changed source
// URL, a reshaped watermark map, or edited watermark file content. Drift on a
// running binding flags it for restart so the worker picks up the new inputs.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"fencecast/internal/events"
	"fencecast/internal/logging"
	"fencecast/internal/store"
)

// fingerprint captures everything about a binding that requires a worker
// restart when it changes. Watermark digests are joined in map order, so a
// reorder counts as drift even when the file set is identical.
type fingerprint struct {
	sourceURL  string
	watermarks string
}

// Detector compares each binding against a snapshot taken on the previous
// scan and flags drifted running bindings for restart.
type Detector struct {
	store    *store.Store
	bus      *events.Bus
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	snapshots map[string]fingerprint
}

// New creates a detector and seeds its snapshots from the store's current
// contents, so configuration present at startup is not reported as drift.
func New(st *store.Store, bus *events.Bus, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	d := &Detector{
		store:     st,
		bus:       bus,
		interval:  interval,
		logger:    logging.GetLogger("detector"),
		snapshots: make(map[string]fingerprint),
	}
	for uid, b := range st.List() {
		d.snapshots[uid] = d.fingerprintOf(b)
	}
	return d
}

// Run executes the scan loop until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	d.logger.Info("Change detector started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Change detector stopping")
			return
		case <-ticker.C:
			d.Scan()
		}
	}
}

// Scan evaluates every binding once. Snapshots are refreshed after
// evaluation regardless of outcome, so one changed state is flagged at most
// once and a binding edited while stopped starts cleanly later.
func (d *Detector) Scan() {
	bindings := d.store.List()

	d.mu.Lock()
	defer d.mu.Unlock()

	for uid := range d.snapshots {
		if _, ok := bindings[uid]; !ok {
			delete(d.snapshots, uid)
		}
	}

	for uid, b := range bindings {
		fp := d.fingerprintOf(b)
		prev, seen := d.snapshots[uid]
		d.snapshots[uid] = fp

		if !seen || fp == prev {
			continue
		}

		reason := driftReason(prev, fp)
		if b.Status.Stopped() {
			d.logger.Debug("Drift on stopped binding ignored", "uid", uid, "reason", reason)
			continue
		}

		d.logger.Info("Configuration drift detected", "uid", uid, "reason", reason)
		d.bus.Publish(events.DriftDetectedEvent{
			UID:       uid,
			Reason:    reason,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		if err := d.store.SetStatus(uid, store.StatusNeedRestart); err != nil {
			d.logger.Error("Failed to flag drifted binding", "uid", uid, "error", err)
		}
	}
}

// fingerprintOf hashes the binding's restart-relevant configuration. Each
// watermark contributes its id, its path string, and its content digest, so
// re-pointing an id at a different file is drift even when the bytes match.
// A missing or unreadable file contributes an empty digest rather than an
// error; the swap from content to nothing is itself drift.
func (d *Detector) fingerprintOf(b store.Binding) fingerprint {
	var sb strings.Builder
	for _, wm := range b.Watermarks {
		fmt.Fprintf(&sb, "%s=%s=%s;", wm.ID, wm.Path, fileDigest(wm.Path))
	}
	return fingerprint{
		sourceURL:  b.SourceURL,
		watermarks: sb.String(),
	}
}

func fileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func driftReason(prev, cur fingerprint) string {
	if prev.sourceURL != cur.sourceURL {
		return "source url changed"
	}
	return "watermark content changed"
}
