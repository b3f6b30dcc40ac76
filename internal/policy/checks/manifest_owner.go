package checks

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/policy"
)

const (
	defaultManifestPath  = "service.yaml"
	defaultManifestField = "owner"
)

// ManifestOwnerCheck verifies that a YAML manifest in the repository declares
// a non-empty ownership field. An absent manifest is compliant; a separate
// file-exists policy governs presence. A manifest that is present but
// unparseable, or that lacks the field, is a violation rather than an error.
type ManifestOwnerCheck struct{}

func init() {
	policy.Register(&ManifestOwnerCheck{})
}

func (c *ManifestOwnerCheck) Type() string {
	return "manifest-owner"
}

func (c *ManifestOwnerCheck) Description() string {
	return "Verifies that the repository's YAML manifest ('path' param, default service.yaml) declares a non-empty ownership field ('field' param, default owner; dots select nested fields)."
}

func (c *ManifestOwnerCheck) Evaluate(ctx context.Context, target policy.Target, pol config.Policy, gw gh.Gateway) (*policy.Finding, error) {
	path := pol.Params["path"]
	if path == "" {
		path = defaultManifestPath
	}
	field := pol.Params["field"]
	if field == "" {
		field = defaultManifestField
	}

	content, found, err := gw.GetFileContent(ctx, target.Name, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return &policy.Finding{
			PolicyName: pol.Name,
			Detail:     fmt.Sprintf("manifest %s is not valid YAML: %v", path, err),
		}, nil
	}

	if val, ok := lookupField(doc, field); !ok || strings.TrimSpace(val) == "" {
		return &policy.Finding{
			PolicyName: pol.Name,
			Detail:     fmt.Sprintf("manifest %s is missing required field %q", path, field),
		}, nil
	}
	return nil, nil
}

// lookupField resolves a dot-separated field path to a scalar string value.
func lookupField(doc map[string]any, field string) (string, bool) {
	parts := strings.Split(field, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	default:
		return "", false
	}
}
