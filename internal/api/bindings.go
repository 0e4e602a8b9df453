package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"fencecast/internal/api/models"
	"fencecast/internal/events"
	"fencecast/internal/store"
)

// registerBindingRoutes registers binding CRUD and lifecycle intents.
func (s *Server) registerBindingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-bindings",
		Method:      http.MethodGet,
		Path:        "/api/bindings",
		Summary:     "List Bindings",
		Description: "Get all camera bindings with their current status",
		Tags:        []string{"bindings"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.BindingListResponse, error) {
		bindings := s.store.List()
		running := s.runningSet()

		data := make([]models.BindingData, 0, len(bindings))
		for _, b := range bindings {
			data = append(data, s.toBindingData(b, running))
		}
		sort.Slice(data, func(i, j int) bool { return data[i].UID < data[j].UID })

		return &models.BindingListResponse{
			Body: models.BindingListData{
				Bindings: data,
				Count:    len(data),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "create-binding",
		Method:      http.MethodPost,
		Path:        "/api/bindings",
		Summary:     "Bind Camera",
		Description: "Create a binding, or update the source URL of an existing one. Omitting uid generates one. New bindings start stopped.",
		Tags:        []string{"bindings"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BindRequest) (*models.BindingResponse, error) {
		if input.Body.SourceURL == "" {
			return nil, huma.Error400BadRequest("source_url is required")
		}

		var b store.Binding
		if cur, ok := s.store.Get(input.Body.UID); ok {
			// Re-binding an existing uid keeps its watermarks.
			if err := s.store.SetURL(input.Body.UID, input.Body.SourceURL); err != nil {
				return nil, s.mapStoreError(err)
			}
			cur.SourceURL = input.Body.SourceURL
			b = cur
		} else {
			created, err := s.store.CreateOrUpdate(input.Body.UID, input.Body.SourceURL, nil)
			if err != nil {
				return nil, s.mapStoreError(err)
			}
			b = created
		}

		s.controller.Kick()
		return &models.BindingResponse{Body: s.toBindingData(b, s.runningSet())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-binding",
		Method:      http.MethodGet,
		Path:        "/api/bindings/{uid}",
		Summary:     "Get Binding",
		Description: "Get one binding by uid",
		Tags:        []string{"bindings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid" example:"cam-front" doc:"Binding identifier"`
	}) (*models.BindingResponse, error) {
		b, ok := s.store.Get(input.UID)
		if !ok {
			return nil, huma.Error404NotFound("binding not found")
		}
		return &models.BindingResponse{Body: s.toBindingData(b, s.runningSet())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-binding",
		Method:      http.MethodDelete,
		Path:        "/api/bindings/{uid}",
		Summary:     "Unbind Camera",
		Description: "Remove a binding; any live worker for it is stopped",
		Tags:        []string{"bindings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid" example:"cam-front" doc:"Binding identifier"`
	}) (*struct{}, error) {
		if err := s.store.Remove(input.UID); err != nil {
			return nil, s.mapStoreError(err)
		}
		s.bus.Publish(events.BindingRemovedEvent{
			UID:       input.UID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		s.controller.Kick()
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-binding",
		Method:      http.MethodPost,
		Path:        "/api/bindings/{uid}/start",
		Summary:     "Start Worker",
		Description: "Request a worker for the binding. Idempotent: a binding already running or pending start is left alone.",
		Tags:        []string{"bindings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid" example:"cam-front" doc:"Binding identifier"`
	}) (*models.BindingResponse, error) {
		b, ok := s.store.Get(input.UID)
		if !ok {
			return nil, huma.Error404NotFound("binding not found")
		}
		if b.Status.Stopped() {
			if err := s.store.SetStatus(input.UID, store.StatusNeedStart); err != nil {
				return nil, s.mapStoreError(err)
			}
			b.Status = store.StatusNeedStart
			s.controller.Kick()
		}
		return &models.BindingResponse{Body: s.toBindingData(b, s.runningSet())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-binding",
		Method:      http.MethodPost,
		Path:        "/api/bindings/{uid}/stop",
		Summary:     "Stop Worker",
		Description: "Request termination of the binding's worker. Idempotent on already stopped bindings.",
		Tags:        []string{"bindings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid" example:"cam-front" doc:"Binding identifier"`
	}) (*models.BindingResponse, error) {
		b, ok := s.store.Get(input.UID)
		if !ok {
			return nil, huma.Error404NotFound("binding not found")
		}
		if !b.Status.Stopped() {
			if err := s.store.SetStatus(input.UID, store.StatusNeedStop); err != nil {
				return nil, s.mapStoreError(err)
			}
			b.Status = store.StatusNeedStop
			s.controller.Kick()
		}
		return &models.BindingResponse{Body: s.toBindingData(b, s.runningSet())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-binding-url",
		Method:      http.MethodPut,
		Path:        "/api/bindings/{uid}/url",
		Summary:     "Update Source URL",
		Description: "Change the binding's camera source URL. A running worker is restarted by the change detector.",
		Tags:        []string{"bindings"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		UID  string `path:"uid" example:"cam-front" doc:"Binding identifier"`
		Body struct {
			SourceURL string `json:"source_url" example:"rtsp://10.0.0.6/stream" doc:"New camera source URL"`
		}
	}) (*models.BindingResponse, error) {
		if input.Body.SourceURL == "" {
			return nil, huma.Error400BadRequest("source_url is required")
		}
		if err := s.store.SetURL(input.UID, input.Body.SourceURL); err != nil {
			return nil, s.mapStoreError(err)
		}
		b, _ := s.store.Get(input.UID)
		return &models.BindingResponse{Body: s.toBindingData(b, s.runningSet())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-running",
		Method:      http.MethodGet,
		Path:        "/api/running",
		Summary:     "List Running Workers",
		Description: "Get the uids with a live worker process attached",
		Tags:        []string{"bindings"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.RunningResponse, error) {
		uids := s.controller.Running()
		sort.Strings(uids)
		return &models.RunningResponse{
			Body: models.RunningData{
				UIDs:  uids,
				Count: len(uids),
			},
		}, nil
	})
}

func (s *Server) runningSet() map[string]bool {
	set := make(map[string]bool)
	for _, uid := range s.controller.Running() {
		set[uid] = true
	}
	return set
}

func (s *Server) toBindingData(b store.Binding, running map[string]bool) models.BindingData {
	return models.BindingData{
		UID:           b.UID,
		SourceURL:     b.SourceURL,
		Watermarks:    b.Watermarks,
		OutputPlain:   b.OutputPlain,
		OutputOverlay: b.OutputOverlay,
		Status:        b.Status,
		Running:       running[b.UID],
	}
}

// mapStoreError maps store errors to HTTP errors.
func (s *Server) mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound("binding not found", err)
	case errors.Is(err, store.ErrInvalidStatus):
		return huma.Error400BadRequest("invalid status", err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
