package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyParty     ctxKey = "party"
)

// basic global logger, JSON to stdout until Init is called.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Init replaces the global logger. level is one of debug, info, warn, error.
func Init(w io.Writer, level string) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	logger.Store(l)
	return l
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Logger() *slog.Logger {
	return logger.Load()
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the request_id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// WithParty stores the authenticated partner role in the context.
func WithParty(ctx context.Context, party string) context.Context {
	return context.WithValue(ctx, ctxKeyParty, party)
}

// LoggerFromContext adds request_id and party if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if ctx == nil {
		return l
	}
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if party, _ := ctx.Value(ctxKeyParty).(string); party != "" {
		l = l.With("party", party)
	}
	return l
}
