// Package logsink writes audit events to a structured logger. It is the
// fallback sink when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	audit "propreg/pkg/platform/audit"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	level := slog.LevelInfo
	if event.Category == audit.CategorySecurity {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "audit event",
		"audit_id", event.ID.String(),
		"category", event.Category,
		"action", event.Action,
		"property_id", event.PropertyID,
		"actor", event.Actor,
		"height", event.Height,
		"previous", event.Previous,
		"current", event.Current,
		"request_id", event.RequestID,
	)
	return nil
}
