// Package github is the thin capability layer over the GitHub API consumed
// by the evaluation engine and the remediation executor.
//
// Error policy: a "not found" response is translated into an explicit
// absence signal (false, nil, or an empty collection) because absence is an
// expected outcome at this layer. Every other error class propagates to the
// caller untouched; the gateway does not retry.
package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v81/github"

	"orgsentry/internal/githubauth"
)

// RemoteRepository is the gateway's view of a repository in the audited
// organization.
type RemoteRepository struct {
	ID       int64
	Name     string
	FullName string
	Archived bool
}

// Gateway exposes the remote capabilities the scanning core needs.
type Gateway interface {
	// ListActiveRepositories returns all non-archived repositories of the
	// audited organization.
	ListActiveRepositories(ctx context.Context) ([]RemoteRepository, error)

	// FileExists reports whether a file exists at the given path on the
	// repository's default branch.
	FileExists(ctx context.Context, repo, path string) (bool, error)

	// GetFileContent returns the decoded content of a file, with found=false
	// (and no error) when the file does not exist.
	GetFileContent(ctx context.Context, repo, path string) (content []byte, found bool, err error)

	// GetRepository returns the repository's current settings, or nil when it
	// no longer exists.
	GetRepository(ctx context.Context, repo string) (*github.Repository, error)

	// GetDefaultWorkflowPermissions returns the default GITHUB_TOKEN
	// permission for workflows ("read" or "write"), or nil when the feature
	// is disabled or not reported.
	GetDefaultWorkflowPermissions(ctx context.Context, repo string) (*string, error)

	// CreateIssue opens an issue on the repository.
	CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*github.Issue, error)

	// ListOpenIssues returns the repository's open issues carrying the label.
	ListOpenIssues(ctx context.Context, repo, label string) ([]*github.Issue, error)

	// ArchiveRepository archives the repository.
	ArchiveRepository(ctx context.Context, repo string) error

	// IsUserInTeam reports whether the user owning the token is an active
	// member of the organization team. The token is used for this one call
	// and not retained.
	IsUserInTeam(ctx context.Context, userToken, org, teamSlug string) (bool, error)
}

// OrgGateway implements Gateway against one GitHub organization.
type OrgGateway struct {
	client *github.Client
	org    string

	// userClient builds a user-scoped client; a seam for tests.
	userClient func(ctx context.Context, token string) *github.Client
}

// NewOrgGateway binds a gateway to an organization.
func NewOrgGateway(client *github.Client, org string) *OrgGateway {
	return &OrgGateway{
		client:     client,
		org:        org,
		userClient: githubauth.UserClient,
	}
}

func (g *OrgGateway) ListActiveRepositories(ctx context.Context) ([]RemoteRepository, error) {
	var out []RemoteRepository
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		repos, resp, err := g.client.Repositories.ListByOrg(ctx, g.org, opts)
		if err != nil {
			return nil, fmt.Errorf("list org repositories: %w", err)
		}
		for _, r := range repos {
			if r.GetArchived() {
				continue
			}
			out = append(out, RemoteRepository{
				ID:       r.GetID(),
				Name:     r.GetName(),
				FullName: r.GetFullName(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *OrgGateway) FileExists(ctx context.Context, repo, path string) (bool, error) {
	_, _, resp, err := g.client.Repositories.GetContents(ctx, g.org, repo, path, nil)
	if err != nil {
		if IsNotFound(resp, err) {
			return false, nil
		}
		return false, fmt.Errorf("check file %s in %s: %w", path, repo, err)
	}
	return true, nil
}

func (g *OrgGateway) GetFileContent(ctx context.Context, repo, path string) ([]byte, bool, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.org, repo, path, nil)
	if err != nil {
		if IsNotFound(resp, err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get file %s in %s: %w", path, repo, err)
	}
	if file == nil {
		// Path resolved to a directory; there is no file here.
		return nil, false, nil
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, false, fmt.Errorf("decode file %s in %s: %w", path, repo, err)
	}
	return []byte(content), true, nil
}

func (g *OrgGateway) GetRepository(ctx context.Context, repo string) (*github.Repository, error) {
	r, resp, err := g.client.Repositories.Get(ctx, g.org, repo)
	if err != nil {
		if IsNotFound(resp, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get repository %s: %w", repo, err)
	}
	return r, nil
}

func (g *OrgGateway) GetDefaultWorkflowPermissions(ctx context.Context, repo string) (*string, error) {
	perms, resp, err := g.client.Repositories.GetDefaultWorkflowPermissions(ctx, g.org, repo)
	if err != nil {
		if IsNotFound(resp, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workflow permissions for %s: %w", repo, err)
	}
	if perms == nil {
		return nil, nil
	}
	return perms.DefaultWorkflowPermissions, nil
}

func (g *OrgGateway) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*github.Issue, error) {
	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	issue, _, err := g.client.Issues.Create(ctx, g.org, repo, req)
	if err != nil {
		return nil, fmt.Errorf("create issue in %s: %w", repo, err)
	}
	return issue, nil
}

func (g *OrgGateway) ListOpenIssues(ctx context.Context, repo, label string) ([]*github.Issue, error) {
	var out []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if label != "" {
		opts.Labels = []string{label}
	}
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.org, repo, opts)
		if err != nil {
			if IsNotFound(resp, err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list open issues in %s: %w", repo, err)
		}
		out = append(out, issues...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

func (g *OrgGateway) ArchiveRepository(ctx context.Context, repo string) error {
	_, _, err := g.client.Repositories.Edit(ctx, g.org, repo, &github.Repository{
		Archived: github.Ptr(true),
	})
	if err != nil {
		return fmt.Errorf("archive repository %s: %w", repo, err)
	}
	return nil
}

func (g *OrgGateway) IsUserInTeam(ctx context.Context, userToken, org, teamSlug string) (bool, error) {
	client := g.userClient(ctx, userToken)

	me, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return false, fmt.Errorf("resolve token user: %w", err)
	}

	membership, resp, err := client.Teams.GetTeamMembershipBySlug(ctx, org, teamSlug, me.GetLogin())
	if err != nil {
		if IsNotFound(resp, err) {
			return false, nil
		}
		return false, fmt.Errorf("check team membership for %s: %w", me.GetLogin(), err)
	}
	return membership.GetState() == "active", nil
}
