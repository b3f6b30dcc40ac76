package githubauth

import (
	"context"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

// UserClient builds a GitHub client authenticated as a user. The token is
// held only by the returned client; it is never cached and never shares the
// service token cache.
func UserClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}
