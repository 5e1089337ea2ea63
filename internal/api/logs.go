package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/usbdisplay/internal/api/models"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// registerLogRoutes registers the buffered log listing and the log stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Entries held in the in-memory log buffer, optionally filtered by level and module",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		entries := filterLogs(logging.GetBuffer(), input.Level, input.Module, input.After, input.Limit)
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing written in between is lost.
		// Clients drop duplicates by seq.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var last uint64
		for _, e := range filterLogs(logging.GetBuffer(), "", "", 0, 0) {
			if err := send.Data(e); err != nil {
				return
			}
			last = e.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if e, ok := event.(events.LogEntryEvent); ok && e.Seq <= last {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// filterLogs returns buffered entries newer than after, at or above level
// and from module, keeping the newest limit entries. Zero values match
// everything.
func filterLogs(buffer *logging.RingBuffer, level, module string, after uint64, limit int) []events.LogEntryEvent {
	if buffer == nil {
		return []events.LogEntryEvent{}
	}
	minRank := levelRank[level]
	out := make([]events.LogEntryEvent, 0, buffer.Count())
	for _, entry := range buffer.ReadSince(after) {
		if levelRank[entry.Level] < minRank {
			continue
		}
		if module != "" && entry.Module != module {
			continue
		}
		out = append(out, events.FromLogEntry(entry))
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
