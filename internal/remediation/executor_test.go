package remediation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v81/github"

	"orgsentry/internal/config"
	gh "orgsentry/internal/github"
	"orgsentry/internal/store"
)

type fakeGateway struct {
	gh.Gateway

	openIssues   []*github.Issue
	listIssueErr error

	createdIssues []string
	createErr     error

	repo    *github.Repository
	repoErr error

	archiveCalls int
	archiveErr   error
}

func (f *fakeGateway) ListOpenIssues(_ context.Context, repo, label string) ([]*github.Issue, error) {
	return f.openIssues, f.listIssueErr
}

func (f *fakeGateway) CreateIssue(_ context.Context, repo, title, body string, labels []string) (*github.Issue, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdIssues = append(f.createdIssues, title)
	return &github.Issue{
		Number:  github.Ptr(100 + len(f.createdIssues)),
		HTMLURL: github.Ptr("https://github.com/acme/" + repo + "/issues/1"),
	}, nil
}

func (f *fakeGateway) GetRepository(context.Context, string) (*github.Repository, error) {
	return f.repo, f.repoErr
}

func (f *fakeGateway) ArchiveRepository(context.Context, string) error {
	f.archiveCalls++
	return f.archiveErr
}

// seedScanWithViolation creates one repository, one policy with the given
// action, and one completed scan carrying a violation against them.
func seedScanWithViolation(t *testing.T, st *store.Store, policyName, action string) int64 {
	t.Helper()
	ctx := context.Background()
	if err := st.UpsertRepository(ctx, 1, "widget"); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}
	if err := st.UpsertPolicy(ctx, store.Policy{Name: policyName, Action: action}); err != nil {
		t.Fatalf("seeding policy: %v", err)
	}
	scanID, err := st.CreateScan(ctx, time.Now())
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	results := []store.RepoResult{{
		RepositoryID: 1,
		Status:       store.ComplianceNonCompliant,
		Violations:   []store.ViolationInput{{PolicyName: policyName, Detail: "detected during scan"}},
	}}
	if err := st.CompleteScanWithResults(ctx, scanID, results, time.Now()); err != nil {
		t.Fatalf("CompleteScanWithResults failed: %v", err)
	}
	return scanID
}

func newTestExecutor(t *testing.T, gw gh.Gateway, cfg *config.AppConfig) (*Executor, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "orgsentry.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e := NewExecutor(st, gw, config.Static{Config: cfg})
	e.SetLogWriter(io.Discard)
	return e, st
}

func issueConfig(policyName string) *config.AppConfig {
	return &config.AppConfig{
		Organization: "acme",
		Policies: []config.Policy{
			{Name: policyName, Type: "file-exists", Action: config.ActionCreateIssue},
		},
	}
}

func actionLog(t *testing.T, st *store.Store, repoID int64) []store.ActionLogEntry {
	t.Helper()
	entries, err := st.ListActionLogForRepository(context.Background(), repoID)
	if err != nil {
		t.Fatalf("ListActionLogForRepository failed: %v", err)
	}
	return entries
}

func TestCreateIssue_FilesAndLogs(t *testing.T) {
	gw := &fakeGateway{}
	e, st := newTestExecutor(t, gw, issueConfig("has-agents-md"))
	scanID := seedScanWithViolation(t, st, "has-agents-md", config.ActionCreateIssue)

	if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}

	if len(gw.createdIssues) != 1 {
		t.Fatalf("got %d created issues, want 1", len(gw.createdIssues))
	}
	if gw.createdIssues[0] != "Compliance: has-agents-md" {
		t.Errorf("got issue title %q", gw.createdIssues[0])
	}

	entries := actionLog(t, st, 1)
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Outcome != store.OutcomeSuccess {
		t.Errorf("got outcome %s, want success", entries[0].Outcome)
	}
	if !strings.Contains(entries[0].Detail, "issues/1") {
		t.Errorf("got detail %q, want the issue reference in it", entries[0].Detail)
	}
}

func TestCreateIssue_DuplicateSkipped(t *testing.T) {
	gw := &fakeGateway{
		openIssues: []*github.Issue{{
			Title:   github.Ptr("Compliance: has-agents-md"),
			HTMLURL: github.Ptr("https://github.com/acme/widget/issues/7"),
		}},
	}
	e, st := newTestExecutor(t, gw, issueConfig("has-agents-md"))
	scanID := seedScanWithViolation(t, st, "has-agents-md", config.ActionCreateIssue)

	if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}

	if len(gw.createdIssues) != 0 {
		t.Errorf("created %d issues despite an existing one", len(gw.createdIssues))
	}
	entries := actionLog(t, st, 1)
	if len(entries) != 1 || entries[0].Outcome != store.OutcomeSkipped {
		t.Fatalf("got entries %+v, want one skipped", entries)
	}
	if !strings.Contains(entries[0].Detail, "issues/7") {
		t.Errorf("got detail %q, want the existing issue reference", entries[0].Detail)
	}
}

func TestCreateIssue_DifferentTitleStillFiles(t *testing.T) {
	// An open issue with the same label but another title is not a duplicate.
	gw := &fakeGateway{
		openIssues: []*github.Issue{{Title: github.Ptr("Compliance: another-policy")}},
	}
	e, st := newTestExecutor(t, gw, issueConfig("has-agents-md"))
	scanID := seedScanWithViolation(t, st, "has-agents-md", config.ActionCreateIssue)

	if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}
	if len(gw.createdIssues) != 1 {
		t.Errorf("got %d created issues, want 1", len(gw.createdIssues))
	}
}

func TestArchive(t *testing.T) {
	archiveConfig := &config.AppConfig{
		Organization: "acme",
		Policies: []config.Policy{
			{Name: "stale-repo", Type: "file-exists", Action: config.ActionArchiveRepo},
		},
	}

	tests := []struct {
		name         string
		gw           *fakeGateway
		wantOutcome  store.Outcome
		wantDetail   string
		wantArchives int
	}{
		{
			name:         "archives an active repository",
			gw:           &fakeGateway{repo: &github.Repository{Archived: github.Ptr(false)}},
			wantOutcome:  store.OutcomeSuccess,
			wantDetail:   "repository archived",
			wantArchives: 1,
		},
		{
			name:        "already archived is skipped",
			gw:          &fakeGateway{repo: &github.Repository{Archived: github.Ptr(true)}},
			wantOutcome: store.OutcomeSkipped,
			wantDetail:  "already archived",
		},
		{
			name:        "repository gone",
			gw:          &fakeGateway{repo: nil},
			wantOutcome: store.OutcomeFailed,
			wantDetail:  "warning: repository not found",
		},
		{
			name: "archive forbidden",
			gw: &fakeGateway{
				repo: &github.Repository{Archived: github.Ptr(false)},
				archiveErr: &github.ErrorResponse{Response: &http.Response{
					StatusCode: http.StatusForbidden,
					Request:    &http.Request{},
				}},
			},
			wantOutcome:  store.OutcomeFailed,
			wantDetail:   "warning: archiving forbidden",
			wantArchives: 1,
		},
		{
			name:        "settings lookup error",
			gw:          &fakeGateway{repoErr: errors.New("api outage")},
			wantOutcome: store.OutcomeFailed,
			wantDetail:  "get repository settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, st := newTestExecutor(t, tt.gw, archiveConfig)
			scanID := seedScanWithViolation(t, st, "stale-repo", config.ActionArchiveRepo)

			if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
				t.Fatalf("ProcessActionsForScan failed: %v", err)
			}

			entries := actionLog(t, st, 1)
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Outcome != tt.wantOutcome {
				t.Errorf("got outcome %s, want %s", entries[0].Outcome, tt.wantOutcome)
			}
			if !strings.Contains(entries[0].Detail, tt.wantDetail) {
				t.Errorf("got detail %q, want it to contain %q", entries[0].Detail, tt.wantDetail)
			}
			if tt.gw.archiveCalls != tt.wantArchives {
				t.Errorf("got %d archive calls, want %d", tt.gw.archiveCalls, tt.wantArchives)
			}
		})
	}
}

func TestLogOnly(t *testing.T) {
	cfg := &config.AppConfig{
		Organization: "acme",
		Policies: []config.Policy{
			{Name: "observed", Type: "file-exists", Action: config.ActionLogOnly},
		},
	}
	e, st := newTestExecutor(t, &fakeGateway{}, cfg)
	scanID := seedScanWithViolation(t, st, "observed", config.ActionLogOnly)

	if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}

	entries := actionLog(t, st, 1)
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Outcome != store.OutcomeSuccess {
		t.Errorf("got outcome %s, want success", entries[0].Outcome)
	}
	if entries[0].Detail != "detected during scan" {
		t.Errorf("got detail %q, want the violation detail", entries[0].Detail)
	}
}

func TestFailureIsolation(t *testing.T) {
	// Two violations in one scan: issue creation fails for the first policy,
	// the second policy's log-only action must still run and both attempts
	// must land in the audit trail.
	cfg := &config.AppConfig{
		Organization: "acme",
		Policies: []config.Policy{
			{Name: "broken-action", Type: "file-exists", Action: config.ActionCreateIssue},
			{Name: "observed", Type: "file-exists", Action: config.ActionLogOnly},
		},
	}
	gw := &fakeGateway{createErr: errors.New("issues disabled")}
	e, st := newTestExecutor(t, gw, cfg)

	ctx := context.Background()
	if err := st.UpsertRepository(ctx, 1, "widget"); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}
	for _, p := range cfg.Policies {
		if err := st.UpsertPolicy(ctx, store.Policy{Name: p.Name, Action: p.Action}); err != nil {
			t.Fatalf("seeding policy: %v", err)
		}
	}
	scanID, err := st.CreateScan(ctx, time.Now())
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	results := []store.RepoResult{{
		RepositoryID: 1,
		Status:       store.ComplianceNonCompliant,
		Violations: []store.ViolationInput{
			{PolicyName: "broken-action", Detail: "a"},
			{PolicyName: "observed", Detail: "b"},
		},
	}}
	if err := st.CompleteScanWithResults(ctx, scanID, results, time.Now()); err != nil {
		t.Fatalf("CompleteScanWithResults failed: %v", err)
	}

	if err := e.ProcessActionsForScan(ctx, scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}

	entries := actionLog(t, st, 1)
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	byPolicy := make(map[string]store.ActionLogEntry, len(entries))
	for _, entry := range entries {
		byPolicy[entry.PolicyName] = entry
	}
	if got := byPolicy["broken-action"].Outcome; got != store.OutcomeFailed {
		t.Errorf("broken-action: got outcome %s, want failed", got)
	}
	if got := byPolicy["observed"].Outcome; got != store.OutcomeSuccess {
		t.Errorf("observed: got outcome %s, want success", got)
	}
}

func TestUnknownActionSkipped(t *testing.T) {
	// An action value the executor does not implement is recorded and skipped
	// rather than failing the run.
	e, st := newTestExecutor(t, &fakeGateway{}, &config.AppConfig{Organization: "acme"})

	ctx := context.Background()
	if err := st.UpsertRepository(ctx, 1, "widget"); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}
	if err := st.UpsertPolicy(ctx, store.Policy{Name: "odd", Action: "notify-pager"}); err != nil {
		t.Fatalf("seeding policy: %v", err)
	}
	scanID, err := st.CreateScan(ctx, time.Now())
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	results := []store.RepoResult{{
		RepositoryID: 1,
		Status:       store.ComplianceNonCompliant,
		Violations:   []store.ViolationInput{{PolicyName: "odd", Detail: "x"}},
	}}
	if err := st.CompleteScanWithResults(ctx, scanID, results, time.Now()); err != nil {
		t.Fatalf("CompleteScanWithResults failed: %v", err)
	}

	if err := e.ProcessActionsForScan(ctx, scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}
	entries := actionLog(t, st, 1)
	if len(entries) != 1 || entries[0].Outcome != store.OutcomeSkipped {
		t.Fatalf("got entries %+v, want one skipped", entries)
	}
}

func TestNoViolationsIsANoOp(t *testing.T) {
	e, st := newTestExecutor(t, &fakeGateway{}, &config.AppConfig{Organization: "acme"})

	scanID, err := st.CreateScan(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	if err := e.ProcessActionsForScan(context.Background(), scanID); err != nil {
		t.Fatalf("ProcessActionsForScan failed: %v", err)
	}
}
