// Package config defines the application configuration consumed by the scan
// orchestrator and remediation executor, and a file-backed provider for it.
package config

import (
	"fmt"
	"strings"
)

// Remediation actions a policy may bind to.
const (
	ActionCreateIssue = "create-issue"
	ActionArchiveRepo = "archive-repo"
	ActionLogOnly     = "log-only"
)

// IssueTemplate describes the issue filed when a policy with the
// create-issue action is violated.
type IssueTemplate struct {
	// Title of the issue. Duplicate detection matches on this title, so it
	// must be stable across scans. Empty means a default derived from the
	// policy name.
	Title string `yaml:"title"`

	// Body of the issue.
	Body string `yaml:"body"`

	// Label is the primary label applied to the issue and used to narrow the
	// duplicate-detection query. Empty means "compliance".
	Label string `yaml:"label"`
}

// Policy is one configured compliance policy.
type Policy struct {
	// Name uniquely identifies the policy and keys its local record.
	Name string `yaml:"name"`

	// Type selects the evaluator implementing the check. Matching is
	// case-insensitive; an unknown type is skipped, not an error.
	Type string `yaml:"type"`

	// Description is shown to operators and stored with the policy record.
	Description string `yaml:"description"`

	// Action is the remediation bound to violations of this policy.
	Action string `yaml:"action"`

	// Params are evaluator-specific options (e.g. the file path for a
	// file-exists policy).
	Params map[string]string `yaml:"params"`

	// Issue customizes the filed issue for the create-issue action.
	Issue IssueTemplate `yaml:"issue"`
}

// AppConfig is the validated, immutable configuration for one scan cycle.
type AppConfig struct {
	// Organization is the GitHub organization whose repositories are audited.
	Organization string `yaml:"organization"`

	// AuthorizedTeam is the team slug whose members may trigger on-demand
	// scans through user-delegated checks.
	AuthorizedTeam string `yaml:"authorized_team"`

	// Schedule drives time-triggered scans: "once" (or empty) for a single
	// run, or "every <duration>" for an interval.
	Schedule string `yaml:"schedule"`

	Policies []Policy `yaml:"policies"`
}

// IssueTitle returns the effective issue title for a policy.
func (p Policy) IssueTitle() string {
	if t := strings.TrimSpace(p.Issue.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Compliance: %s", p.Name)
}

// IssueLabel returns the effective primary issue label for a policy.
func (p Policy) IssueLabel() string {
	if l := strings.TrimSpace(p.Issue.Label); l != "" {
		return l
	}
	return "compliance"
}

// IssueBody returns the effective issue body for a policy, given the
// violation detail recorded during the scan.
func (p Policy) IssueBody(detail string) string {
	if b := strings.TrimSpace(p.Issue.Body); b != "" {
		return b
	}
	body := fmt.Sprintf("This repository violates the %q compliance policy.", p.Name)
	if p.Description != "" {
		body += "\n\n" + p.Description
	}
	if detail != "" {
		body += "\n\nDetail: " + detail
	}
	return body
}

// Validate checks structural validity: a non-empty organization, unique
// non-empty policy names, and known action values. It does not verify that a
// policy's type has a registered evaluator; unknown types are skipped at scan
// time.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Organization) == "" {
		return fmt.Errorf("config: organization is required")
	}

	seen := make(map[string]struct{}, len(c.Policies))
	for i, p := range c.Policies {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("config: policy %d has no name", i)
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("config: duplicate policy name %q", p.Name)
		}
		seen[p.Name] = struct{}{}

		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("config: policy %q has no type", p.Name)
		}

		switch p.Action {
		case ActionCreateIssue, ActionArchiveRepo, ActionLogOnly:
		case "":
			return fmt.Errorf("config: policy %q has no action", p.Name)
		default:
			return fmt.Errorf("config: policy %q has unknown action %q", p.Name, p.Action)
		}
	}
	return nil
}
