package audit

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/models"
)

// MultiSink writes every event to all of its sinks.
type MultiSink []models.AuditSink

func (m MultiSink) Write(ctx context.Context, event *models.LoginEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to the structured log. It is the fallback when no
// database is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("component", "audit.log_sink"))}
}

func (s *LogSink) Write(_ context.Context, event *models.LoginEvent) error {
	s.logger.Info("user login",
		zap.Int64("user_id", event.UserID),
		zap.String("email", event.Email),
		zap.String("login_method", event.LoginMethod),
		zap.String("device_type", event.DeviceType),
		zap.String("os", event.OS),
		zap.String("browser", event.Browser),
		zap.String("ip", event.IPAddress),
		zap.String("session_id", event.SessionID),
		zap.Time("login_at", event.LoginAt),
	)
	return nil
}
