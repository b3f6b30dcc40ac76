package githubauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeExchanger struct {
	mu        sync.Mutex
	calls     int32
	token     string
	expiresAt time.Time
	err       error

	lastAssertion      string
	lastInstallationID int64
}

func (f *fakeExchanger) Exchange(_ context.Context, assertion string, installationID int64) (string, time.Time, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastAssertion = assertion
	f.lastInstallationID = installationID
	f.mu.Unlock()
	return f.token, f.expiresAt, f.err
}

var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func newTestManager(ex Exchanger, now time.Time) *Manager {
	return &Manager{
		appID:          42,
		installationID: 7,
		key:            testKey,
		exchanger:      ex,
		now:            func() time.Time { return now },
	}
}

func TestToken_ExchangesOnFirstCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchanger{token: "ghs_first", expiresAt: now.Add(time.Hour)}
	m := newTestManager(ex, now)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "ghs_first" {
		t.Errorf("got token %q, want ghs_first", tok)
	}
	if n := atomic.LoadInt32(&ex.calls); n != 1 {
		t.Errorf("got %d exchanges, want 1", n)
	}
	if ex.lastInstallationID != 7 {
		t.Errorf("got installation id %d, want 7", ex.lastInstallationID)
	}
}

func TestToken_ReusesCachedTokenOutsideRefreshMargin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Ten minutes of validity left: comfortably past the five-minute margin.
	ex := &fakeExchanger{token: "ghs_cached", expiresAt: now.Add(10 * time.Minute)}
	m := newTestManager(ex, now)

	for i := 0; i < 3; i++ {
		tok, err := m.Token(context.Background())
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if tok != "ghs_cached" {
			t.Errorf("got token %q, want ghs_cached", tok)
		}
	}
	if n := atomic.LoadInt32(&ex.calls); n != 1 {
		t.Errorf("got %d exchanges, want 1 (cached token should be reused)", n)
	}
}

func TestToken_RefreshesInsideMargin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchanger{token: "ghs_a", expiresAt: now.Add(time.Hour)}
	m := newTestManager(ex, now)

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	// Jump to four minutes before expiry: inside the margin, so the cached
	// token counts as stale.
	later := now.Add(56 * time.Minute)
	m.now = func() time.Time { return later }
	ex.token = "ghs_b"
	ex.expiresAt = later.Add(time.Hour)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "ghs_b" {
		t.Errorf("got token %q, want refreshed ghs_b", tok)
	}
	if n := atomic.LoadInt32(&ex.calls); n != 2 {
		t.Errorf("got %d exchanges, want 2", n)
	}
}

func TestToken_ExchangeErrorNotCached(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchanger{err: errors.New("boom")}
	m := newTestManager(ex, now)

	if _, err := m.Token(context.Background()); err == nil {
		t.Fatal("expected exchange error")
	}

	ex.err = nil
	ex.token = "ghs_recovered"
	ex.expiresAt = now.Add(time.Hour)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after recovery failed: %v", err)
	}
	if tok != "ghs_recovered" {
		t.Errorf("got token %q, want ghs_recovered", tok)
	}
}

func TestToken_ConcurrentCallersShareOneExchange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	release := make(chan struct{})
	var calls int32
	ex := exchangerFunc(func(ctx context.Context, assertion string, id int64) (string, time.Time, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "ghs_shared", now.Add(time.Hour), nil
	})
	m := newTestManager(ex, now)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	toks := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			toks[i], errs[i] = m.Token(context.Background())
		}(i)
	}

	// Give the goroutines a moment to pile onto the in-flight exchange.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: Token failed: %v", i, errs[i])
		}
		if toks[i] != "ghs_shared" {
			t.Errorf("worker %d: got token %q, want ghs_shared", i, toks[i])
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("got %d exchanges for %d concurrent callers, want 1", n, workers)
	}
}

type exchangerFunc func(ctx context.Context, assertion string, installationID int64) (string, time.Time, error)

func (f exchangerFunc) Exchange(ctx context.Context, assertion string, installationID int64) (string, time.Time, error) {
	return f(ctx, assertion, installationID)
}

func TestSignAssertion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&fakeExchanger{}, now)

	signed, err := m.signAssertion()
	if err != nil {
		t.Fatalf("signAssertion failed: %v", err)
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(tok *jwt.Token) (any, error) {
		return &testKey.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parsing assertion: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("assertion did not validate")
	}
	if claims.Issuer != "42" {
		t.Errorf("got issuer %q, want app id 42", claims.Issuer)
	}
	if got := claims.IssuedAt.Time; !got.Equal(now.Add(-assertionClockSkew)) {
		t.Errorf("got iat %v, want backdated %v", got, now.Add(-assertionClockSkew))
	}
	if got := claims.ExpiresAt.Time; !got.Equal(now.Add(assertionTTL)) {
		t.Errorf("got exp %v, want %v", got, now.Add(assertionTTL))
	}
}
