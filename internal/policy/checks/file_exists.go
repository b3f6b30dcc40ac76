package checks

import (
	"context"
	"fmt"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/policy"
)

// FileExistsCheck verifies that a named file exists at the repository root.
// The file path comes from the policy's "path" param.
type FileExistsCheck struct{}

func (c *FileExistsCheck) Type() string {
	return "file-exists"
}

func (c *FileExistsCheck) Description() string {
	return "Verifies that the file named by the policy's 'path' param exists at the repository root on the default branch."
}

func (c *FileExistsCheck) Evaluate(ctx context.Context, target policy.Target, pol config.Policy, gw gh.Gateway) (*policy.Finding, error) {
	path := pol.Params["path"]
	if path == "" {
		return nil, fmt.Errorf("policy %s: file-exists requires a 'path' param", pol.Name)
	}

	// Only an explicit absence is a violation; a Gateway failure here means
	// we could not determine presence and must abort, not report compliant.
	exists, err := gw.FileExists(ctx, target.Name, path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	return &policy.Finding{
		PolicyName: pol.Name,
		Detail:     fmt.Sprintf("required file %s not found at repository root", path),
	}, nil
}

func init() {
	policy.Register(&FileExistsCheck{})
}
