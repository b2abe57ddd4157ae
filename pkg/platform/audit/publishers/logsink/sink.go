// Package logsink writes audit events as structured log lines.
package logsink

import (
	"context"
	"log/slog"

	audit "rentgate/pkg/platform/audit"
)

type Sink struct {
	logger *slog.Logger
}

func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	s.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"category", string(event.Category),
		"session_id", event.SessionID,
		"user_id", event.UserID,
		"reason", event.Reason,
		"device", event.Device,
		"client_ip", event.ClientIP,
		"request_id", event.RequestID,
		"timestamp", event.Timestamp,
	)
	return nil
}
