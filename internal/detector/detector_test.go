package detector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fencecast/internal/events"
	"fencecast/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "bindings.json"), filepath.Join(dir, "hls"))
	if err := st.Load(); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return st
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanFlagsChangedWatermarkOnce(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	wmPath := filepath.Join(dir, "logo.png")
	writeFile(t, wmPath, "original pixels")

	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a",
		store.Watermarks{{ID: "logo", Path: wmPath}}); err != nil {
		t.Fatalf("create binding: %v", err)
	}
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	bus := events.New()
	drifted := make(chan events.DriftDetectedEvent, 4)
	unsub := events.Subscribe(bus, func(e events.DriftDetectedEvent) { drifted <- e })
	defer unsub()

	d := New(st, bus, time.Hour)

	// Unchanged content must not drift.
	d.Scan()
	b, _ := st.Get("cam-a")
	if b.Status != store.StatusStarted {
		t.Fatalf("status after clean scan = %s", b.Status)
	}

	writeFile(t, wmPath, "edited pixels")
	d.Scan()
	b, _ = st.Get("cam-a")
	if b.Status != store.StatusNeedRestart {
		t.Fatalf("status after drift = %s, want %s", b.Status, store.StatusNeedRestart)
	}
	select {
	case e := <-drifted:
		if e.UID != "cam-a" {
			t.Fatalf("drift event uid = %s", e.UID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no drift event published")
	}

	// The snapshot was refreshed, so the same content is flagged only once.
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	d.Scan()
	b, _ = st.Get("cam-a")
	if b.Status != store.StatusStarted {
		t.Fatalf("status flagged twice for one change: %s", b.Status)
	}
}

func TestScanFlagsChangedSourceURL(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a", nil); err != nil {
		t.Fatalf("create binding: %v", err)
	}
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	d := New(st, events.New(), time.Hour)

	if err := st.SetURL("cam-a", "rtsp://example/b"); err != nil {
		t.Fatalf("set url: %v", err)
	}
	d.Scan()

	b, _ := st.Get("cam-a")
	if b.Status != store.StatusNeedRestart {
		t.Fatalf("status = %s, want %s", b.Status, store.StatusNeedRestart)
	}
}

func TestScanIgnoresStoppedBindings(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a", nil); err != nil {
		t.Fatalf("create binding: %v", err)
	}

	d := New(st, events.New(), time.Hour)

	if err := st.SetURL("cam-a", "rtsp://example/b"); err != nil {
		t.Fatalf("set url: %v", err)
	}
	d.Scan()

	b, _ := st.Get("cam-a")
	if b.Status != store.StatusStopped {
		t.Fatalf("stopped binding was flagged: %s", b.Status)
	}

	// The refreshed snapshot means a later start does not immediately flag
	// the binding either.
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	d.Scan()
	b, _ = st.Get("cam-a")
	if b.Status != store.StatusStarted {
		t.Fatalf("stale drift reported after start: %s", b.Status)
	}
}

func TestScanDetectsWatermarkReorder(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	p1 := filepath.Join(dir, "a.png")
	p2 := filepath.Join(dir, "b.png")
	writeFile(t, p1, "one")
	writeFile(t, p2, "two")

	wms := store.Watermarks{{ID: "a", Path: p1}, {ID: "b", Path: p2}}
	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a", wms); err != nil {
		t.Fatalf("create binding: %v", err)
	}
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	d := New(st, events.New(), time.Hour)

	reordered := store.Watermarks{{ID: "b", Path: p2}, {ID: "a", Path: p1}}
	if err := st.SetWatermarks("cam-a", reordered); err != nil {
		t.Fatalf("set watermarks: %v", err)
	}
	d.Scan()

	b, _ := st.Get("cam-a")
	if b.Status != store.StatusNeedRestart {
		t.Fatalf("reorder not treated as drift: %s", b.Status)
	}
}

func TestScanDetectsRepointedWatermarkPath(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	p1 := filepath.Join(dir, "v1.png")
	p2 := filepath.Join(dir, "v2.png")
	writeFile(t, p1, "same pixels")
	writeFile(t, p2, "same pixels")

	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a",
		store.Watermarks{{ID: "logo", Path: p1}}); err != nil {
		t.Fatalf("create binding: %v", err)
	}
	if err := st.SetStatus("cam-a", store.StatusStarted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	d := New(st, events.New(), time.Hour)

	// Same id, identical bytes, different file. The path string alone is
	// enough to require a restart.
	if err := st.SetWatermarks("cam-a", store.Watermarks{{ID: "logo", Path: p2}}); err != nil {
		t.Fatalf("set watermarks: %v", err)
	}
	d.Scan()

	b, _ := st.Get("cam-a")
	if b.Status != store.StatusNeedRestart {
		t.Fatalf("path-only change not treated as drift: %s", b.Status)
	}
}

func TestScanPrunesRemovedBindings(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateOrUpdate("cam-a", "rtsp://example/a", nil); err != nil {
		t.Fatalf("create binding: %v", err)
	}

	d := New(st, events.New(), time.Hour)
	if err := st.Remove("cam-a"); err != nil {
		t.Fatalf("remove binding: %v", err)
	}
	d.Scan()

	d.mu.Lock()
	_, ok := d.snapshots["cam-a"]
	d.mu.Unlock()
	if ok {
		t.Fatal("snapshot for removed binding not pruned")
	}
}
