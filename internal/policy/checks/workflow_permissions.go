package checks

import (
	"context"
	"fmt"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/policy"
)

// WorkflowPermissionsCheck verifies that the default GITHUB_TOKEN permission
// for workflows is read-only.
type WorkflowPermissionsCheck struct{}

func init() {
	policy.Register(&WorkflowPermissionsCheck{})
}

func (c *WorkflowPermissionsCheck) Type() string {
	return "workflow-permissions"
}

func (c *WorkflowPermissionsCheck) Description() string {
	return "Verifies that the repository's default workflow token permission is 'read'. Repositories with the feature disabled are treated as compliant."
}

func (c *WorkflowPermissionsCheck) Evaluate(ctx context.Context, target policy.Target, pol config.Policy, gw gh.Gateway) (*policy.Finding, error) {
	perm, err := gw.GetDefaultWorkflowPermissions(ctx, target.Name)
	if err != nil {
		return nil, err
	}
	// An absent permission value means the feature is disabled; there is
	// nothing to tighten, so the repository is compliant.
	if perm == nil {
		return nil, nil
	}
	if *perm == "read" {
		return nil, nil
	}
	return &policy.Finding{
		PolicyName: pol.Name,
		Detail:     fmt.Sprintf("default workflow permission is %q, expected \"read\"", *perm),
	}, nil
}
