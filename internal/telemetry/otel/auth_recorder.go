package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "workbench-api/auth"

// Auth outcomes counted under auth.outcomes.
const (
	OutcomeLoginSuccess  = "login_success"
	OutcomeLoginFailure  = "login_failure"
	OutcomeRefresh       = "refresh"
	OutcomeRefreshDenied = "refresh_denied"
	OutcomeLogout        = "logout"
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeRejected      = "rejected"
	OutcomeStoreFault    = "store_fault"
	OutcomeOwnershipDeny = "ownership_denied"
	OutcomeRegistration  = "registration"
)

// AuthEvent is one authentication or authorization outcome.
type AuthEvent struct {
	Outcome string
	// Reason is a short machine name such as an error kind. Optional.
	Reason string
	UserID string
	Route  string
}

// logEmitter is the subset of otellog.Logger the recorder needs.
type logEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuthRecorder counts auth outcomes and emits one OTel log record per event.
// The zero value and a nil *AuthRecorder are no-ops.
type AuthRecorder struct {
	outcomes metric.Int64Counter
	logger   logEmitter
}

// NewAuthRecorder builds a recorder from the given providers. Either may be nil.
func NewAuthRecorder(mp metric.MeterProvider, lp otellog.LoggerProvider) (*AuthRecorder, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"auth.outcomes",
		metric.WithDescription("Authentication and authorization outcomes"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	r := &AuthRecorder{outcomes: counter}
	if lp != nil {
		r.logger = lp.Logger(instrumentationName)
	}
	return r, nil
}

// NewAuthRecorderWithLogger is like NewAuthRecorder with an explicit log emitter. Used by tests.
func NewAuthRecorderWithLogger(mp metric.MeterProvider, logger logEmitter) (*AuthRecorder, error) {
	r, err := NewAuthRecorder(mp, nil)
	if err != nil {
		return nil, err
	}
	r.logger = logger
	return r, nil
}

// Record counts ev and emits it as a log record.
func (r *AuthRecorder) Record(ctx context.Context, ev AuthEvent) {
	if r == nil || r.outcomes == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", ev.Outcome)}
	if ev.Reason != "" {
		attrs = append(attrs, attribute.String("reason", ev.Reason))
	}
	r.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))

	if r.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetEventName("auth." + ev.Outcome)
	rec.SetBody(otellog.StringValue(ev.Outcome))
	rec.AddAttributes(otellog.String("outcome", ev.Outcome))
	if ev.Reason != "" {
		rec.AddAttributes(otellog.String("reason", ev.Reason))
	}
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	if ev.Route != "" {
		rec.AddAttributes(otellog.String("route", ev.Route))
	}
	r.logger.Emit(ctx, rec)
}
