package engine

import "context"

// Decision is the outcome of an ownership check.
type Decision string

const (
	DecisionAllow        Decision = "allow"
	DecisionNotFound     Decision = "not_found"
	DecisionUnauthorized Decision = "unauthorized"
)

// OwnershipInput is the data the ownership policy sees.
// Exists is false when the resource lookup found nothing; AuthorID is then ignored.
type OwnershipInput struct {
	CallerID string
	Resource string
	Exists   bool
	AuthorID string
}

// Evaluator evaluates ownership policies using OPA or other engines.
type Evaluator interface {
	// EvaluateOwnership decides whether the caller may mutate the resource.
	EvaluateOwnership(ctx context.Context, in OwnershipInput) (Decision, error)
	// HealthCheck verifies the engine can evaluate its policy.
	HealthCheck(ctx context.Context) error
}
