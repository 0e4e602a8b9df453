package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"fencecast/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of status transitions, crashes, drift detections, and orphan reaps",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"status-changed":  events.StatusChangedEvent{},
		"worker-crashed":  events.WorkerCrashedEvent{},
		"drift-detected":  events.DriftDetectedEvent{},
		"binding-removed": events.BindingRemovedEvent{},
		"orphan-reaped":   events.OrphanReapedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StatusChangedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.WorkerCrashedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.DriftDetectedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.BindingRemovedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.OrphanReapedEvent](s.bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Confirm the connection before any real event arrives.
		if err := send.Data(events.StatusChangedEvent{
			UID:       "system",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
