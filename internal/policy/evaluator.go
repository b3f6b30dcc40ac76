// Package policy holds the evaluator registry and the evaluation engine that
// checks repositories against configured compliance policies.
package policy

import (
	"context"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
)

// Target identifies the repository under evaluation.
type Target struct {
	ID   int64
	Name string
}

// Finding is a detected policy violation. A nil *Finding from an evaluator
// means the repository is compliant for that policy.
type Finding struct {
	PolicyName string
	Detail     string
}

// Evaluator implements exactly one policy type's check logic. Evaluators are
// side-effect free: they read through the Gateway and return a finding or
// nil. Content problems (unparseable files, missing fields) are converted
// into findings; Gateway and transport errors are returned and abort the
// scan.
type Evaluator interface {
	// Type is the policy-type tag this evaluator is bound to. Matching
	// against configured policies is case-insensitive.
	Type() string

	// Description explains what the check verifies.
	Description() string

	Evaluate(ctx context.Context, target Target, pol config.Policy, gw gh.Gateway) (*Finding, error)
}
