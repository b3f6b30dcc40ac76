// Package githubauth owns the GitHub App identity: it produces short-lived,
// cached installation tokens for the backend service and stateless clients
// for user-delegated checks.
package githubauth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/singleflight"
)

const (
	// assertionTTL bounds the signed App assertion. GitHub caps this at ten
	// minutes; a few minutes is plenty for a single exchange.
	assertionTTL = 5 * time.Minute

	// assertionClockSkew backdates the assertion's issued-at so modest clock
	// drift between us and GitHub does not invalidate it.
	assertionClockSkew = 60 * time.Second

	// refreshMargin is how long before the reported expiry a cached token is
	// treated as stale, so we never hand out a token the API would reject.
	refreshMargin = 5 * time.Minute
)

// Exchanger exchanges a signed App assertion for an installation token.
type Exchanger interface {
	Exchange(ctx context.Context, assertion string, installationID int64) (token string, expiresAt time.Time, err error)
}

// Manager signs App assertions and exchanges them for installation tokens,
// caching the current token in memory. Safe for concurrent use; concurrent
// callers during a refresh share one in-flight exchange.
type Manager struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
	exchanger      Exchanger

	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

// NewManager builds a Manager using the real GitHub Apps API for exchanges.
func NewManager(creds *Credentials) (*Manager, error) {
	key, err := creds.parseKey()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		appID:          creds.AppID,
		installationID: creds.InstallationID,
		key:            key,
		now:            time.Now,
	}
	m.exchanger = &appsExchanger{manager: m}
	return m, nil
}

// Token returns a valid installation token, reusing the cached one while it
// is more than refreshMargin from expiry. On a miss it signs a fresh
// assertion and exchanges it; exchange failures are returned to the caller
// unretried.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != "" && m.expires.After(m.now().Add(refreshMargin)) {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	// Two callers can both see a stale token; the singleflight group
	// collapses their refreshes into one in-flight exchange.
	v, err, _ := m.group.Do("installation-token", func() (any, error) {
		assertion, err := m.signAssertion()
		if err != nil {
			return nil, err
		}
		tok, expires, err := m.exchanger.Exchange(ctx, assertion, m.installationID)
		if err != nil {
			return nil, fmt.Errorf("githubauth: exchange installation token: %w", err)
		}

		m.mu.Lock()
		m.token = tok
		m.expires = expires
		m.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) signAssertion() (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(m.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("githubauth: sign app assertion: %w", err)
	}
	return signed, nil
}

// appsExchanger talks to the GitHub Apps API with the assertion as a bearer
// credential.
type appsExchanger struct {
	manager *Manager
}

func (e *appsExchanger) Exchange(ctx context.Context, assertion string, installationID int64) (string, time.Time, error) {
	client := github.NewClient(&http.Client{
		Transport: &bearerTransport{token: assertion},
	})
	tok, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok.GetToken(), tok.GetExpiresAt().Time, nil
}

// bearerTransport sets a static bearer credential on every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return base.RoundTrip(clone)
}
