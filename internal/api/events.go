package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	// Register SSE endpoint with event type mapping
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for captures, streaming clients, detection results and device changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-success":   events.CaptureSuccessEvent{},
		"capture-error":     events.CaptureErrorEvent{},
		"stream-started":    events.StreamStartedEvent{},
		"stream-stopped":    events.StreamStoppedEvent{},
		"detection":         events.DetectionEvent{},
		"detection-started": events.DetectionStartedEvent{},
		"detection-stopped": events.DetectionStoppedEvent{},
		"device-discovery":  events.DeviceDiscoveryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		// Subscribe to all event types using event bus
		unsubscribers := []func(){
			events.SubscribeToChannel[events.CaptureSuccessEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DetectionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DetectionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DetectionStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial connection confirmation
		if err := send.Data(events.DeviceDiscoveryEvent{
			DevicePath: "system",
			DeviceName: "camnode",
			Action:     "connected",
			Timestamp:  time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Send event using Huma's SSE sender with error handling
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
