package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/usbdisplay/internal/events"
)

// registerSSERoutes registers the bridge event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of attachment changes, session starts and stops, mode and power changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"attachment-changed": events.AttachmentChangedEvent{},
		"session-started":    events.SessionStartedEvent{},
		"session-stopped":    events.SessionStoppedEvent{},
		"mode-changed":       events.ModeChangedEvent{},
		"dpms-changed":       events.DPMSChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.AttachmentChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ModeChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DPMSChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Open with the current attachment so clients need not poll /api/status first.
		if s.status != nil {
			st := s.status()
			if err := send.Data(events.AttachmentChangedEvent{
				State:     st.Attachment,
				Device:    st.Device,
				Vendor:    st.Vendor,
				Product:   st.Product,
				Timestamp: time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
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
