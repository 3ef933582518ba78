package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/audit/domain"
	auditrepo "workbench-api/internal/audit/repository"
)

type clientIPKey struct{}

// WithClientIP returns a context carrying the caller's client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the client IP stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth code paths and the
// mutation audit middleware. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then ClientIPFromContext is used, falling back to "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log logrus.FieldLogger) *Logger {
	if ipExtractor == nil {
		ipExtractor = ClientIPFromContext
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log, now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := l.ipExtractor(ctx)
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	// The request may already be finished; the write must not be cancelled with it.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		l.log.WithFields(logrus.Fields{
			"action":   action,
			"resource": resource,
		}).WithError(err).Warn("audit: failed to log event")
	}
}
