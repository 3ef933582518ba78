// Package ownership gates mutations of owned resources on the resource's author.
package ownership

import (
	"context"

	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/policy/engine"
	"workbench-api/internal/telemetry/otel"
)

// Resource describes the result of loading an owned resource.
type Resource struct {
	Kind     string
	AuthorID string
	Exists   bool
}

// Found describes an existing resource authored by authorID.
func Found(kind, authorID string) Resource {
	return Resource{Kind: kind, AuthorID: authorID, Exists: true}
}

// Missing describes a resource lookup that found nothing.
func Missing(kind string) Resource {
	return Resource{Kind: kind}
}

// Authorizer evaluates ownership decisions through a policy engine.
type Authorizer struct {
	eval     engine.Evaluator
	recorder *otel.AuthRecorder
}

// NewAuthorizer returns an Authorizer backed by eval.
func NewAuthorizer(eval engine.Evaluator) *Authorizer {
	return &Authorizer{eval: eval}
}

// WithRecorder returns a copy of a that counts denied decisions on recorder.
func (a *Authorizer) WithRecorder(recorder *otel.AuthRecorder) *Authorizer {
	cp := *a
	cp.recorder = recorder
	return &cp
}

// RequireOwner returns nil when callerID may mutate r.
// A missing resource yields NotFound regardless of caller; otherwise a non-author yields Unauthorized.
// Engine failures are Generic.
func (a *Authorizer) RequireOwner(ctx context.Context, callerID string, r Resource) error {
	d, err := a.eval.EvaluateOwnership(ctx, engine.OwnershipInput{
		CallerID: callerID,
		Resource: r.Kind,
		Exists:   r.Exists,
		AuthorID: r.AuthorID,
	})
	if err != nil {
		return apierror.Wrap(apierror.Generic, err)
	}
	switch d {
	case engine.DecisionAllow:
		return nil
	case engine.DecisionNotFound:
		return apierror.New(apierror.NotFound)
	default:
		a.recorder.Record(ctx, otel.AuthEvent{Outcome: otel.OutcomeOwnershipDeny, Reason: r.Kind, UserID: callerID})
		return apierror.New(apierror.Unauthorized)
	}
}

// HealthCheck reports whether the policy engine is usable.
func (a *Authorizer) HealthCheck(ctx context.Context) error {
	return a.eval.HealthCheck(ctx)
}
