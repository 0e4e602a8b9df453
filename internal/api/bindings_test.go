package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"fencecast/internal/store"
)

// fakeController is a test implementation of Controller.
type fakeController struct {
	kicked  int
	running []string
}

func (f *fakeController) Kick()             { f.kicked++ }
func (f *fakeController) Running() []string { return f.running }

func TestToBindingData(t *testing.T) {
	ctrl := &fakeController{running: []string{"cam-front"}}
	s := &Server{controller: ctrl}

	b := store.Binding{
		UID:           "cam-front",
		SourceURL:     "rtsp://example/a",
		Watermarks:    store.Watermarks{{ID: "logo", Path: "/wm/logo.png"}},
		OutputPlain:   "/hls/cam-front/plain.m3u8",
		OutputOverlay: "/hls/cam-front/overlay.m3u8",
		Status:        store.StatusStarted,
	}

	data := s.toBindingData(b, s.runningSet())
	if data.UID != "cam-front" || data.SourceURL != "rtsp://example/a" {
		t.Errorf("data = %+v", data)
	}
	if !data.Running {
		t.Error("expected running=true for a live worker")
	}
	if data.Status != store.StatusStarted {
		t.Errorf("status = %s", data.Status)
	}
	if len(data.Watermarks) != 1 || data.Watermarks[0].ID != "logo" {
		t.Errorf("watermarks = %+v", data.Watermarks)
	}

	data = s.toBindingData(store.Binding{UID: "cam-back"}, s.runningSet())
	if data.Running {
		t.Error("expected running=false without a live worker")
	}
}

func TestMapStoreError(t *testing.T) {
	s := &Server{}

	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrInvalidStatus, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		mapped := s.mapStoreError(tc.err)
		var status huma.StatusError
		if !errors.As(mapped, &status) {
			t.Fatalf("mapStoreError(%v) did not return a status error", tc.err)
		}
		if status.GetStatus() != tc.want {
			t.Errorf("mapStoreError(%v) = %d, want %d", tc.err, status.GetStatus(), tc.want)
		}
	}
}
