package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Watermark pairs a watermark identifier with the image file path backing it.
type Watermark struct {
	ID   string
	Path string
}

// Watermarks is an ordered set of watermarks. Order matters: overlay
// composition stacks each watermark on top of the previous composite, so the
// generated ffmpeg filter graph depends on it. The JSON form is a plain
// object {"id": "path", ...}; marshaling and unmarshaling both preserve key
// order, unlike a Go map.
type Watermarks []Watermark

// Get returns the path bound to the given watermark id.
func (w Watermarks) Get(id string) (string, bool) {
	for _, wm := range w {
		if wm.ID == id {
			return wm.Path, true
		}
	}
	return "", false
}

// Set updates the path for an existing id in place, or appends a new entry.
func (w *Watermarks) Set(id, path string) {
	for i, wm := range *w {
		if wm.ID == id {
			(*w)[i].Path = path
			return
		}
	}
	*w = append(*w, Watermark{ID: id, Path: path})
}

// Paths returns the watermark file paths in order.
func (w Watermarks) Paths() []string {
	if len(w) == 0 {
		return nil
	}
	paths := make([]string, len(w))
	for i, wm := range w {
		paths[i] = wm.Path
	}
	return paths
}

// Equal reports whether two watermark sets have the same ids and paths in
// the same order.
func (w Watermarks) Equal(other Watermarks) bool {
	if len(w) != len(other) {
		return false
	}
	for i := range w {
		if w[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing storage with w.
func (w Watermarks) Clone() Watermarks {
	if w == nil {
		return nil
	}
	out := make(Watermarks, len(w))
	copy(out, w)
	return out
}

// MarshalJSON encodes the set as a JSON object in insertion order.
func (w Watermarks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, wm := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(wm.ID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(wm.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the key order of the
// document via the token stream.
func (w *Watermarks) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*w = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("watermarks: expected JSON object, got %v", tok)
	}

	out := Watermarks{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("watermarks: expected string key, got %v", keyTok)
		}

		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("watermarks: value for %q: %w", key, err)
		}
		out = append(out, Watermark{ID: key, Path: path})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*w = out
	return nil
}
