package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// HTTPLoggingMiddleware logs each request once it completes. Event streams
// are logged when the client disconnects.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("api")

	method := ctx.Method()
	path := ctx.URL().Path
	stream := strings.Contains(ctx.Header("Accept"), "text/event-stream") || strings.HasSuffix(path, "/stream") || path == "/api/events"

	next(ctx)

	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	message := "HTTP request completed"
	if stream {
		message = "Event stream closed"
	}
	logger.LogAttrs(ctx.Context(), requestLevel(status, stream), message, attrs...)
}

// requestLevel picks the log level for a finished request. Successful
// plain requests log at debug.
func requestLevel(status int, stream bool) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case stream:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
