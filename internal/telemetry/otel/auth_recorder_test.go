package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// recordCapture stores the Records passed to Emit for assertion.
type recordCapture struct {
	recs []otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.recs = append(r.recs, rec)
}

func collectOutcomes(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "auth.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("auth.outcomes data is %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("outcome"))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestAuthRecorder_CountsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	cap := &recordCapture{}
	r, err := NewAuthRecorderWithLogger(mp, cap)
	if err != nil {
		t.Fatalf("NewAuthRecorderWithLogger: %v", err)
	}
	ctx := context.Background()

	r.Record(ctx, AuthEvent{Outcome: OutcomeLoginSuccess, UserID: "u-1"})
	r.Record(ctx, AuthEvent{Outcome: OutcomeLoginFailure})
	r.Record(ctx, AuthEvent{Outcome: OutcomeLoginFailure})

	got := collectOutcomes(t, reader)
	if got[OutcomeLoginSuccess] != 1 {
		t.Errorf("login_success = %d, want 1", got[OutcomeLoginSuccess])
	}
	if got[OutcomeLoginFailure] != 2 {
		t.Errorf("login_failure = %d, want 2", got[OutcomeLoginFailure])
	}
	if len(cap.recs) != 3 {
		t.Fatalf("emitted %d records, want 3", len(cap.recs))
	}
}

func TestAuthRecorder_LogAttributes(t *testing.T) {
	cap := &recordCapture{}
	r, err := NewAuthRecorderWithLogger(nil, cap)
	if err != nil {
		t.Fatalf("NewAuthRecorderWithLogger: %v", err)
	}

	r.Record(context.Background(), AuthEvent{Outcome: OutcomeRejected, Reason: "invalid_token", UserID: "u-1", Route: "/notes"})

	if len(cap.recs) != 1 {
		t.Fatalf("emitted %d records, want 1", len(cap.recs))
	}
	rec := cap.recs[0]
	if rec.Timestamp().IsZero() {
		t.Error("timestamp should be set")
	}
	attrs := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{"outcome": "rejected", "reason": "invalid_token", "user_id": "u-1", "route": "/notes"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestAuthRecorder_NilIsNoop(t *testing.T) {
	var r *AuthRecorder
	r.Record(context.Background(), AuthEvent{Outcome: OutcomeLogout})
}
