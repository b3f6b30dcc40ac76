package policy

import (
	"context"
	"fmt"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
)

// Engine evaluates one repository against an ordered list of configured
// policies. Policies whose type has no registered evaluator are skipped
// silently so an unknown type never blocks a scan. Evaluators run
// independently; findings are concatenated in policy order, though no
// ordering is guaranteed to callers.
type Engine struct {
	gateway gh.Gateway
}

func NewEngine(gateway gh.Gateway) *Engine {
	return &Engine{gateway: gateway}
}

// Evaluate returns every violation found for the target. An evaluator error
// aborts evaluation and propagates: such errors indicate a systemic problem
// (bad credentials, API outage) rather than a per-repository anomaly.
func (e *Engine) Evaluate(ctx context.Context, target Target, policies []config.Policy) ([]Finding, error) {
	var findings []Finding
	for _, pol := range policies {
		ev, ok := Lookup(pol.Type)
		if !ok {
			continue
		}
		f, err := ev.Evaluate(ctx, target, pol, e.gateway)
		if err != nil {
			return nil, fmt.Errorf("evaluate policy %s on %s: %w", pol.Name, target.Name, err)
		}
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings, nil
}
