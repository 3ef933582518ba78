package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const ownershipQuery = "data.workbench.ownership.decision"

// Ownership Rego policy. A missing resource is reported before any caller comparison.
const ownershipRegoPolicy = `package workbench.ownership

default decision := "unauthorized"

decision := "not_found" if {
	not input.resource.exists
}

decision := "allow" if {
	input.resource.exists
	input.caller.id != ""
	input.resource.author == input.caller.id
}
`

// OPAEvaluator evaluates the ownership policy using OPA Rego.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the ownership policy and prepares its query.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"ownership.rego": ownershipRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile ownership policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(ownershipQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare ownership query: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// EvaluateOwnership evaluates the ownership policy for in.
func (e *OPAEvaluator) EvaluateOwnership(ctx context.Context, in OwnershipInput) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return DecisionUnauthorized, fmt.Errorf("eval ownership policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return DecisionUnauthorized, fmt.Errorf("ownership query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return DecisionUnauthorized, fmt.Errorf("ownership query returned %T", rs[0].Expressions[0].Value)
	}
	switch d := Decision(v); d {
	case DecisionAllow, DecisionNotFound, DecisionUnauthorized:
		return d, nil
	default:
		return DecisionUnauthorized, fmt.Errorf("unknown ownership decision %q", v)
	}
}

// HealthCheck verifies that the prepared query evaluates against a minimal input.
// Does not touch any store. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.EvaluateOwnership(ctx, OwnershipInput{CallerID: "health", Resource: "health", Exists: true, AuthorID: "health"})
	if err != nil {
		return err
	}
	if d != DecisionAllow {
		return fmt.Errorf("ownership policy self-check returned %q", d)
	}
	return nil
}

func buildInput(in OwnershipInput) map[string]interface{} {
	return map[string]interface{}{
		"caller": map[string]interface{}{
			"id": in.CallerID,
		},
		"resource": map[string]interface{}{
			"type":   in.Resource,
			"exists": in.Exists,
			"author": in.AuthorID,
		},
	}
}
