// Package remediation maps persisted violations to their configured actions
// and executes them with idempotency and per-action failure isolation.
package remediation

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/store"
)

// Executor processes the violations of one scan. Every attempt is appended
// to the action log regardless of outcome; a failure on one violation never
// prevents processing of the rest.
type Executor struct {
	store    *store.Store
	gateway  gh.Gateway
	provider config.Provider

	log io.Writer
	now func() time.Time
}

func NewExecutor(st *store.Store, gateway gh.Gateway, provider config.Provider) *Executor {
	return &Executor{
		store:    st,
		gateway:  gateway,
		provider: provider,
		log:      os.Stderr,
		now:      time.Now,
	}
}

// SetLogWriter redirects operator output; used by tests.
func (e *Executor) SetLogWriter(w io.Writer) { e.log = w }

// ProcessActionsForScan dispatches the configured action for every violation
// belonging to the scan. It returns an error only when the violations or
// their configuration cannot be loaded at all; individual action failures
// are captured in the audit trail instead.
func (e *Executor) ProcessActionsForScan(ctx context.Context, scanID int64) error {
	violations, err := e.store.ListViolationsForScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("remediation: load violations for scan %d: %w", scanID, err)
	}
	if len(violations) == 0 {
		return nil
	}

	cfg, err := e.provider.GetConfig(false)
	if err != nil {
		return fmt.Errorf("remediation: load configuration: %w", err)
	}
	templates := make(map[string]config.Policy, len(cfg.Policies))
	for _, p := range cfg.Policies {
		templates[p.Name] = p
	}

	for _, v := range violations {
		pol, ok := templates[v.PolicyName]
		if !ok {
			// The policy was superseded in configuration after the scan;
			// fall back to defaults derived from the stored record.
			pol = config.Policy{Name: v.PolicyName}
		}

		entry := e.processOne(ctx, v, pol)
		entry.CreatedAt = e.now()
		if err := e.store.AppendActionLog(ctx, entry); err != nil {
			fmt.Fprintf(e.log, "remediation: scan %d: failed to record action for %s/%s: %v\n",
				scanID, v.RepositoryName, v.PolicyName, err)
		}
	}
	return nil
}

func (e *Executor) processOne(ctx context.Context, v store.Violation, pol config.Policy) store.ActionLogEntry {
	entry := store.ActionLogEntry{
		RepositoryID: v.RepositoryID,
		PolicyName:   v.PolicyName,
		Action:       v.PolicyAction,
	}

	switch v.PolicyAction {
	case config.ActionCreateIssue:
		entry.Outcome, entry.Detail = e.fileIssue(ctx, v, pol)
	case config.ActionArchiveRepo:
		entry.Outcome, entry.Detail = e.archive(ctx, v)
	case config.ActionLogOnly:
		entry.Outcome = store.OutcomeSuccess
		entry.Detail = v.Detail
	default:
		entry.Outcome = store.OutcomeSkipped
		entry.Detail = fmt.Sprintf("unknown action %q", v.PolicyAction)
	}
	return entry
}

// fileIssue creates a tracking issue for the violation unless an open issue
// with the same title already carries the policy's label.
func (e *Executor) fileIssue(ctx context.Context, v store.Violation, pol config.Policy) (store.Outcome, string) {
	title := pol.IssueTitle()
	label := pol.IssueLabel()

	open, err := e.gateway.ListOpenIssues(ctx, v.RepositoryName, label)
	if err != nil {
		return store.OutcomeFailed, fmt.Sprintf("list open issues: %v", err)
	}
	for _, issue := range open {
		if issue.GetTitle() == title {
			return store.OutcomeSkipped, fmt.Sprintf("open issue already exists: %s", issue.GetHTMLURL())
		}
	}

	issue, err := e.gateway.CreateIssue(ctx, v.RepositoryName, title, pol.IssueBody(v.Detail), []string{label})
	if err != nil {
		return store.OutcomeFailed, fmt.Sprintf("create issue: %v", err)
	}
	return store.OutcomeSuccess, fmt.Sprintf("created issue %s", issue.GetHTMLURL())
}

// archive archives the repository unless it is already archived, in which
// case the attempt is recorded as skipped without touching the archive
// endpoint again.
func (e *Executor) archive(ctx context.Context, v store.Violation) (store.Outcome, string) {
	repo, err := e.gateway.GetRepository(ctx, v.RepositoryName)
	if err != nil {
		return store.OutcomeFailed, fmt.Sprintf("get repository settings: %v", err)
	}
	if repo == nil {
		return store.OutcomeFailed, "warning: repository not found"
	}
	if repo.GetArchived() {
		return store.OutcomeSkipped, "repository is already archived"
	}

	if err := e.gateway.ArchiveRepository(ctx, v.RepositoryName); err != nil {
		// Missing or forbidden repositories are expected operational
		// conditions, recorded at warning detail rather than as full errors.
		switch gh.ErrStatusCode(err) {
		case 404:
			return store.OutcomeFailed, "warning: repository not found"
		case 403:
			return store.OutcomeFailed, "warning: archiving forbidden for this repository"
		}
		return store.OutcomeFailed, fmt.Sprintf("archive repository: %v", err)
	}
	return store.OutcomeSuccess, "repository archived"
}
