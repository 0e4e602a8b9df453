// Package store is the persisted desired-state store for stream bindings.
// The entire document is kept in memory and rewritten wholesale on every
// mutation; a single mutex serializes writers so concurrent loops can never
// clobber each other's update.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"fencecast/internal/logging"
)

// ErrNotFound is returned when a binding uid is not present in the store.
var ErrNotFound = errors.New("binding not found")

// ErrInvalidStatus is returned when a caller supplies a status outside the
// closed enumeration.
var ErrInvalidStatus = errors.New("invalid status")

// Binding is the desired-state record for one stream. The JSON field names
// are the persistence contract and must stay stable across restarts.
type Binding struct {
	UID           string     `json:"-"`
	SourceURL     string     `json:"source_url"`
	Watermarks    Watermarks `json:"watermarks"`
	OutputPlain   string     `json:"output_plain"`
	OutputOverlay string     `json:"output_overlay"`
	Status        Status     `json:"status"`
}

// Clone returns a deep copy of the binding.
func (b Binding) Clone() Binding {
	b.Watermarks = b.Watermarks.Clone()
	return b
}

// Store is a file-backed document of bindings keyed by uid. All mutations
// run under one mutex and persist the whole document atomically; the
// in-memory copy is the last known good state and survives a corrupt or
// unwritable file.
type Store struct {
	mu        sync.Mutex
	path      string
	outputDir string
	bindings  map[string]Binding
	logger    *slog.Logger
}

// New creates a store persisting to path. Output playlist locations for new
// bindings are derived under outputDir.
func New(path, outputDir string) *Store {
	return &Store{
		path:      path,
		outputDir: outputDir,
		bindings:  make(map[string]Binding),
		logger:    logging.GetLogger("store"),
	}
}

// Load reads the persisted document. A missing file yields an empty store; a
// present but unreadable or malformed file is an error and leaves the
// current in-memory state untouched rather than silently dropping every
// binding.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read bindings document: %w", err)
	}

	loaded := make(map[string]Binding)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse bindings document %s: %w", s.path, err)
	}

	for uid, b := range loaded {
		b.UID = uid
		if !b.Status.Valid() {
			b.Status = StatusStopped
		}
		loaded[uid] = b
	}
	s.bindings = loaded
	return nil
}

// Path returns the location of the persisted document.
func (s *Store) Path() string {
	return s.path
}

// Outputs returns the plain and overlay playlist locations for a uid. They
// are a pure function of the uid so they never change for a binding's
// lifetime.
func (s *Store) Outputs(uid string) (plain, overlay string) {
	dir := filepath.Join(s.outputDir, uid)
	return filepath.Join(dir, "plain.m3u8"), filepath.Join(dir, "overlay.m3u8")
}

// CreateOrUpdate inserts or replaces the configuration for uid. An empty uid
// generates one. New bindings start stopped with output locations derived
// from the uid; existing bindings keep their status and outputs.
func (s *Store) CreateOrUpdate(uid, sourceURL string, watermarks Watermarks) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uid == "" {
		uid = uuid.NewString()
	}

	b, exists := s.bindings[uid]
	if !exists {
		plain, overlay := s.Outputs(uid)
		b = Binding{
			UID:           uid,
			OutputPlain:   plain,
			OutputOverlay: overlay,
			Status:        StatusStopped,
		}
	}
	b.SourceURL = sourceURL
	b.Watermarks = watermarks.Clone()

	s.bindings[uid] = b
	if err := s.save(); err != nil {
		return Binding{}, err
	}
	return b.Clone(), nil
}

// Remove deletes the binding for uid.
func (s *Store) Remove(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[uid]; !ok {
		return ErrNotFound
	}
	delete(s.bindings, uid)
	return s.save()
}

// Get returns the binding for uid.
func (s *Store) Get(uid string) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[uid]
	if !ok {
		return Binding{}, false
	}
	return b.Clone(), true
}

// List returns a copy of all bindings keyed by uid.
func (s *Store) List() map[string]Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Binding, len(s.bindings))
	for uid, b := range s.bindings {
		out[uid] = b.Clone()
	}
	return out
}

// SetStatus transitions the binding's status. Setting the status it already
// has is a no-op that leaves the persisted document untouched.
func (s *Store) SetStatus(uid string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.update(uid, func(b *Binding) bool {
		if b.Status == status {
			return false
		}
		b.Status = status
		return true
	})
}

// SetURL updates the source URL for uid.
func (s *Store) SetURL(uid, sourceURL string) error {
	return s.update(uid, func(b *Binding) bool {
		if b.SourceURL == sourceURL {
			return false
		}
		b.SourceURL = sourceURL
		return true
	})
}

// SetWatermarks replaces the entire watermark set for uid.
func (s *Store) SetWatermarks(uid string, watermarks Watermarks) error {
	return s.update(uid, func(b *Binding) bool {
		b.Watermarks = watermarks.Clone()
		return true
	})
}

// UpsertWatermark adds or updates a single watermark, preserving the
// position of an existing id.
func (s *Store) UpsertWatermark(uid, wmID, path string) error {
	return s.update(uid, func(b *Binding) bool {
		b.Watermarks.Set(wmID, path)
		return true
	})
}

// ClearWatermarks removes every watermark from the binding and deletes the
// backing image files. It reports false when the uid is absent.
func (s *Store) ClearWatermarks(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[uid]
	if !ok {
		return false
	}

	for _, wm := range b.Watermarks {
		if err := os.Remove(wm.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to delete watermark file", "uid", uid, "path", wm.Path, "error", err)
		}
	}

	b.Watermarks = nil
	s.bindings[uid] = b
	if err := s.save(); err != nil {
		s.logger.Error("Failed to persist watermark removal", "uid", uid, "error", err)
	}
	return true
}

// update applies fn to the binding under the store lock and persists the
// document when fn reports a change.
func (s *Store) update(uid string, fn func(*Binding) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[uid]
	if !ok {
		return ErrNotFound
	}
	if !fn(&b) {
		return nil
	}
	s.bindings[uid] = b
	return s.save()
}

// save persists the whole document atomically. Caller holds s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.bindings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bindings document: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}

	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write bindings document: %w", err)
	}
	return nil
}
