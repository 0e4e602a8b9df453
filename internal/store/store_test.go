package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "bindings.json"), filepath.Join(dir, "hls"))
}

func TestCreateOrUpdateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	wms := Watermarks{{ID: "a", Path: "p1.png"}}
	created, err := s.CreateOrUpdate("cam-1", "rtsp://example/live", wms)
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}

	got, ok := s.Get("cam-1")
	if !ok {
		t.Fatal("Get returned absent for created binding")
	}
	if got.SourceURL != "rtsp://example/live" {
		t.Errorf("SourceURL = %q", got.SourceURL)
	}
	if !got.Watermarks.Equal(wms) {
		t.Errorf("Watermarks = %v, want %v", got.Watermarks, wms)
	}
	if got.Status != StatusStopped {
		t.Errorf("Status = %q, want stopped", got.Status)
	}

	plain, overlay := s.Outputs("cam-1")
	if got.OutputPlain != plain || got.OutputOverlay != overlay {
		t.Errorf("outputs = %q/%q, want %q/%q", got.OutputPlain, got.OutputOverlay, plain, overlay)
	}
	if created.OutputPlain != plain {
		t.Errorf("created binding output = %q, want %q", created.OutputPlain, plain)
	}
}

func TestOutputsFixedAcrossUpdates(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateOrUpdate("cam-1", "rtsp://one", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetStatus("cam-1", StatusNeedStart); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	second, err := s.CreateOrUpdate("cam-1", "rtsp://two", Watermarks{{ID: "a", Path: "a.png"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.OutputPlain != first.OutputPlain || second.OutputOverlay != first.OutputOverlay {
		t.Error("output locations changed on update")
	}
	if second.Status != StatusNeedStart {
		t.Errorf("update reset status to %q", second.Status)
	}
}

func TestGeneratedUID(t *testing.T) {
	s := newTestStore(t)

	b, err := s.CreateOrUpdate("", "rtsp://example", nil)
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if b.UID == "" {
		t.Fatal("expected generated uid")
	}
	if _, ok := s.Get(b.UID); !ok {
		t.Error("generated uid not retrievable")
	}
}

func TestSetStatusIdempotentOnDisk(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateOrUpdate("cam-1", "rtsp://example", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.SetStatus("cam-1", StatusNeedStart); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	mtimeBefore := mustStat(t, s.Path())

	if err := s.SetStatus("cam-1", StatusNeedStart); err != nil {
		t.Fatalf("repeated SetStatus: %v", err)
	}
	after, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	if string(before) != string(after) {
		t.Error("document changed after idempotent SetStatus")
	}
	if mustStat(t, s.Path()) != mtimeBefore {
		t.Error("document rewritten after idempotent SetStatus")
	}
}

func mustStat(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return fi.ModTime().UnixNano()
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateOrUpdate("cam-1", "rtsp://example", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.SetStatus("cam-1", Status("exploded"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestMutationsOnAbsentUID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetStatus("ghost", StatusNeedStart); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus err = %v, want ErrNotFound", err)
	}
	if err := s.SetURL("ghost", "rtsp://x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetURL err = %v, want ErrNotFound", err)
	}
	if err := s.Remove("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove err = %v, want ErrNotFound", err)
	}
	if s.ClearWatermarks("ghost") {
		t.Error("ClearWatermarks reported success for absent uid")
	}
}

func TestClearWatermarksDeletesFiles(t *testing.T) {
	s := newTestStore(t)

	wmPath := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(wmPath, []byte("png"), 0o644); err != nil {
		t.Fatalf("write watermark: %v", err)
	}

	if _, err := s.CreateOrUpdate("cam-1", "rtsp://example", Watermarks{{ID: "a", Path: wmPath}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !s.ClearWatermarks("cam-1") {
		t.Fatal("ClearWatermarks reported absent uid")
	}
	if _, err := os.Stat(wmPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("watermark file still present: %v", err)
	}
	b, _ := s.Get("cam-1")
	if len(b.Watermarks) != 0 {
		t.Errorf("watermarks not cleared: %v", b.Watermarks)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(s.List()) != 0 {
		t.Error("expected empty store")
	}
}

func TestLoadCorruptDocumentKeepsState(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateOrUpdate("cam-1", "rtsp://example", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt document: %v", err)
	}

	if err := s.Load(); err == nil {
		t.Fatal("Load succeeded on corrupt document")
	}
	if _, ok := s.Get("cam-1"); !ok {
		t.Error("in-memory state lost after failed Load")
	}
}

func TestPersistenceAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.json")

	s1 := New(path, filepath.Join(dir, "hls"))
	wms := Watermarks{{ID: "a", Path: "p1.png"}, {ID: "b", Path: "p2.png"}}
	if _, err := s1.CreateOrUpdate("cam-1", "rtsp://example", wms); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s1.SetStatus("cam-1", StatusStarted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	s2 := New(path, filepath.Join(dir, "hls"))
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, ok := s2.Get("cam-1")
	if !ok {
		t.Fatal("binding missing after reload")
	}
	if b.Status != StatusStarted {
		t.Errorf("Status = %q after reload", b.Status)
	}
	if !b.Watermarks.Equal(wms) {
		t.Errorf("Watermarks = %v after reload, want %v", b.Watermarks, wms)
	}
}

func TestConcurrentWritersLoseNoUpdates(t *testing.T) {
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := string(rune('a' + i%26))
			if _, err := s.CreateOrUpdate(uid+"-stream", "rtsp://example", nil); err != nil {
				t.Errorf("CreateOrUpdate: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s2 := New(s.Path(), t.TempDir())
	if err := s2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(s2.List()); got != n {
		t.Errorf("persisted %d bindings, want %d", got, n)
	}
}
