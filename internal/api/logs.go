package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"fencecast/internal/api/models"
	"fencecast/internal/logging"
)

// registerLogRoutes registers the recent-logs endpoint backed by the in-memory
// ring buffer.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get the most recent log entries retained in memory, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LogsResponse, error) {
		var entries []models.LogEntryData
		if buffer := logging.Buffer(); buffer != nil {
			snapshot := buffer.Snapshot()
			entries = make([]models.LogEntryData, len(snapshot))
			for i, e := range snapshot {
				entries[i] = models.LogEntryData{
					Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				}
			}
		}
		return &models.LogsResponse{
			Body: models.LogsData{
				Entries: entries,
				Count:   len(entries),
			},
		}, nil
	})
}
