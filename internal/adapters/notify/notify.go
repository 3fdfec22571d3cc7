// Package notify holds the notification sinks: structured log, Telegram and a
// websocket hub, plus a fan-out that drives several of them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

// Log writes notifications to the structured log. It never fails.
type Log struct {
	log *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = observability.Logger()
	}
	return &Log{log: l.With("component", "notify")}
}

func (n *Log) Notify(ctx context.Context, destination string, msg domain.Notification) error {
	n.log.InfoContext(ctx, "notification",
		"destination", destination,
		"kind", msg.Kind,
		"session_id", msg.SessionID,
		"game_id", msg.GameID,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout struct {
	sinks []domain.Notifier
}

func NewFanout(sinks ...domain.Notifier) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Notify(ctx context.Context, destination string, msg domain.Notification) error {
	var errs []error
	for i, sink := range f.sinks {
		if err := sink.Notify(ctx, destination, msg); err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, sink, err))
		}
	}
	return errors.Join(errs...)
}
