package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
)

var ErrAuditWriteFailed = errors.New("audit write failed")

const loginStatusSuccess = "success"

// Logger records successful logins without blocking the login response.
type Logger struct {
	sink    models.AuditSink
	timeout time.Duration
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

func NewLogger(sink models.AuditSink, timeout time.Duration, rec metrics.Recorder, logger *zap.Logger) *Logger {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		sink:    sink,
		timeout: timeout,
		metrics: rec,
		logger:  logger.With(zap.String("component", "audit")),
		now:     time.Now,
	}
}

// Record derives the login event from r and writes it in the background.
// Failures are logged and counted; they never reach the caller.
func (l *Logger) Record(userID int64, email, method string, r *http.Request) {
	event := l.newEvent(userID, email, method, r)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				l.fail(event, fmt.Errorf("%w: panic: %v", ErrAuditWriteFailed, p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		if err := l.sink.Write(ctx, event); err != nil {
			l.fail(event, fmt.Errorf("%w: %w", ErrAuditWriteFailed, err))
			return
		}
		l.metrics.AuditWrite("ok")
	}()
}

// Wait blocks until every in-flight write has finished.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) fail(event *models.LoginEvent, err error) {
	l.metrics.AuditWrite("failed")
	l.logger.Warn("login audit write failed",
		zap.Int64("user_id", event.UserID),
		zap.String("login_method", event.LoginMethod),
		zap.Error(err),
	)
}

func (l *Logger) newEvent(userID int64, email, method string, r *http.Request) *models.LoginEvent {
	ua := r.UserAgent()
	device := ParseUserAgent(ua)

	return &models.LoginEvent{
		UserID:         userID,
		Email:          email,
		DeviceType:     device.DeviceType,
		OS:             device.OS,
		Browser:        device.Browser,
		BrowserVersion: device.BrowserVersion,
		IPAddress:      ClientIP(r),
		UserAgent:      ua,
		LoginMethod:    method,
		LoginStatus:    loginStatusSuccess,
		SessionID:      uuid.NewString(),
		LoginAt:        l.now().UTC(),
	}
}
