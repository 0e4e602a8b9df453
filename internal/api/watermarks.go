package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"fencecast/internal/api/models"
)

// registerWatermarkRoutes registers watermark upload and removal.
func (s *Server) registerWatermarkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "upload-watermark",
		Method:      http.MethodPut,
		Path:        "/api/bindings/{uid}/watermarks/{id}",
		Summary:     "Upload Watermark",
		Description: "Store a watermark image for the binding. Uploading an existing id replaces the image in place and keeps its overlay position; a new id is appended on top.",
		Tags:        []string{"watermarks"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID     string `path:"uid" example:"cam-front" doc:"Binding identifier"`
		ID      string `path:"id" example:"logo" doc:"Watermark identifier"`
		RawBody []byte `contentType:"application/octet-stream" doc:"Watermark image bytes"`
	}) (*models.WatermarkResponse, error) {
		if !safeName(input.ID) {
			return nil, huma.Error400BadRequest("invalid watermark id")
		}
		if !safeName(input.UID) {
			return nil, huma.Error400BadRequest("invalid uid")
		}
		if len(input.RawBody) == 0 {
			return nil, huma.Error400BadRequest("empty watermark image")
		}
		if _, ok := s.store.Get(input.UID); !ok {
			return nil, huma.Error404NotFound("binding not found")
		}

		dir := filepath.Join(s.options.WatermarkDir, input.UID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, huma.Error500InternalServerError("failed to create watermark directory", err)
		}
		path := filepath.Join(dir, input.ID+".png")
		if err := os.WriteFile(path, input.RawBody, 0o644); err != nil {
			return nil, huma.Error500InternalServerError("failed to store watermark image", err)
		}

		if err := s.store.UpsertWatermark(input.UID, input.ID, path); err != nil {
			return nil, s.mapStoreError(err)
		}

		s.logger.Info("Watermark stored", "uid", input.UID, "id", input.ID, "bytes", len(input.RawBody))
		return &models.WatermarkResponse{
			Body: models.WatermarkData{
				UID:  input.UID,
				ID:   input.ID,
				Path: path,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-watermarks",
		Method:      http.MethodDelete,
		Path:        "/api/bindings/{uid}/watermarks",
		Summary:     "Clear Watermarks",
		Description: "Remove all watermarks from the binding and delete their image files",
		Tags:        []string{"watermarks"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid" example:"cam-front" doc:"Binding identifier"`
	}) (*models.ClearedResponse, error) {
		if _, ok := s.store.Get(input.UID); !ok {
			return nil, huma.Error404NotFound("binding not found")
		}
		cleared := s.store.ClearWatermarks(input.UID)
		return &models.ClearedResponse{
			Body: models.ClearedData{
				UID:     input.UID,
				Cleared: cleared,
			},
		}, nil
	})
}

// safeName rejects identifiers that could escape the watermark directory.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}
