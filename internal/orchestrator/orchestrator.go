// Package orchestrator drives one scan end to end: configuration load,
// policy and repository reconciliation, evaluation, persistence, and the
// handoff to remediation.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/policy"
	"orgsentry/internal/store"
)

// Enqueuer schedules remediation for a scan as an independent, asynchronous
// unit of work. Implemented by the job scheduler.
type Enqueuer interface {
	EnqueueScan(scanID int64) error
}

// Orchestrator owns the scan state machine. A scan transitions
// InProgress → Completed only after every repository is evaluated and all
// results are durably persisted; any failure in between transitions it to
// Failed with a completion timestamp. Retry is the scheduler's concern, not
// ours.
type Orchestrator struct {
	store    *store.Store
	gateway  gh.Gateway
	provider config.Provider
	engine   *policy.Engine
	enqueuer Enqueuer

	log io.Writer
	now func() time.Time
}

func New(st *store.Store, gateway gh.Gateway, provider config.Provider, enqueuer Enqueuer) *Orchestrator {
	return &Orchestrator{
		store:    st,
		gateway:  gateway,
		provider: provider,
		engine:   policy.NewEngine(gateway),
		enqueuer: enqueuer,
		log:      os.Stderr,
		now:      time.Now,
	}
}

// SetLogWriter redirects operator output; used by tests.
func (o *Orchestrator) SetLogWriter(w io.Writer) { o.log = w }

// SetClock overrides the time source; used by tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// RunScan executes one full scan and returns its ID. The returned error is
// the scan's failure cause, if any; in that case the scan row is already
// marked Failed. Evaluation is fail-fast: one evaluator error aborts the
// whole scan, because such errors point at systemic problems, not at the
// repository being evaluated.
func (o *Orchestrator) RunScan(ctx context.Context) (scanID int64, err error) {
	scanID, err = o.store.CreateScan(ctx, o.now())
	if err != nil {
		return 0, fmt.Errorf("orchestrator: create scan: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		// The scan record must never be left dangling InProgress, even when
		// the failure was the caller's context being cancelled.
		failCtx := context.WithoutCancel(ctx)
		if ferr := o.store.FailScan(failCtx, scanID, o.now()); ferr != nil {
			fmt.Fprintf(o.log, "scan %d: failed to record failure: %v\n", scanID, ferr)
		}
	}()

	cfg, err := o.provider.GetConfig(false)
	if err != nil {
		return scanID, fmt.Errorf("orchestrator: load configuration: %w", err)
	}

	if err = o.reconcilePolicies(ctx, cfg.Policies); err != nil {
		return scanID, err
	}

	repos, err := o.reconcileRepositories(ctx)
	if err != nil {
		return scanID, err
	}
	fmt.Fprintf(o.log, "scan %d: reconciled %d active repositories\n", scanID, len(repos))

	results, violations, err := o.evaluate(ctx, repos, cfg.Policies)
	if err != nil {
		return scanID, err
	}

	if err = o.store.CompleteScanWithResults(ctx, scanID, results, o.now()); err != nil {
		return scanID, fmt.Errorf("orchestrator: persist scan results: %w", err)
	}
	fmt.Fprintf(o.log, "scan %d: completed with %d violations\n", scanID, violations)

	if violations > 0 && o.enqueuer != nil {
		if qerr := o.enqueuer.EnqueueScan(scanID); qerr != nil {
			// The scan itself succeeded and its results are durable; surface
			// the scheduling problem without flipping the scan to Failed.
			fmt.Fprintf(o.log, "scan %d: failed to schedule remediation: %v\n", scanID, qerr)
		}
	}
	return scanID, nil
}

// reconcilePolicies upserts a local policy record for each configured
// policy. Policies that dropped out of configuration stay in place to
// preserve historical references.
func (o *Orchestrator) reconcilePolicies(ctx context.Context, policies []config.Policy) error {
	for _, p := range policies {
		err := o.store.UpsertPolicy(ctx, store.Policy{
			Name:        p.Name,
			Description: p.Description,
			Action:      p.Action,
		})
		if err != nil {
			return fmt.Errorf("orchestrator: reconcile policy %s: %w", p.Name, err)
		}
	}
	return nil
}

// reconcileRepositories aligns the local catalog with the authoritative
// remote list: upsert by immutable remote ID (creating unseen repositories
// and following renames), then delete everything no longer present remotely,
// cascading to violations and action-log entries.
func (o *Orchestrator) reconcileRepositories(ctx context.Context) ([]gh.RemoteRepository, error) {
	repos, err := o.gateway.ListActiveRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list remote repositories: %w", err)
	}

	keep := make([]int64, 0, len(repos))
	for _, r := range repos {
		if err := o.store.UpsertRepository(ctx, r.ID, r.Name); err != nil {
			return nil, fmt.Errorf("orchestrator: reconcile repository %s: %w", r.Name, err)
		}
		keep = append(keep, r.ID)
	}

	removed, err := o.store.DeleteRepositoriesNotIn(ctx, keep)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: prune deleted repositories: %w", err)
	}
	if removed > 0 {
		fmt.Fprintf(o.log, "pruned %d repositories no longer present remotely\n", removed)
	}
	return repos, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, repos []gh.RemoteRepository, policies []config.Policy) ([]store.RepoResult, int, error) {
	results := make([]store.RepoResult, 0, len(repos))
	total := 0
	for _, r := range repos {
		findings, err := o.engine.Evaluate(ctx, policy.Target{ID: r.ID, Name: r.Name}, policies)
		if err != nil {
			return nil, 0, fmt.Errorf("orchestrator: %w", err)
		}

		res := store.RepoResult{
			RepositoryID: r.ID,
			Status:       store.ComplianceCompliant,
		}
		for _, f := range findings {
			res.Violations = append(res.Violations, store.ViolationInput{
				PolicyName: f.PolicyName,
				Detail:     f.Detail,
			})
		}
		if len(res.Violations) > 0 {
			res.Status = store.ComplianceNonCompliant
			total += len(res.Violations)
			fmt.Fprintf(o.log, "%s: %d violations\n", r.FullName, len(res.Violations))
		}
		results = append(results, res)
	}
	return results, total, nil
}
