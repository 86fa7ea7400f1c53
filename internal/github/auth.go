// Package github is the single gateway to the GitHub API: it owns
// authentication, retry with backoff, and rate-limit throttling for
// every outbound call of a scan session.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Provider produces a valid bearer credential for outbound calls.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider wraps a caller-supplied personal access token.
type StaticTokenProvider struct {
	source oauth2.TokenSource
}

// NewStaticTokenProvider returns a provider for a non-expiring token.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrAuth)
	}
	return &StaticTokenProvider{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	}, nil
}

func (p *StaticTokenProvider) Token(_ context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return tok.AccessToken, nil
}

const (
	// assertionLifetime is the GitHub App JWT validity window; the host
	// rejects anything above 10 minutes.
	assertionLifetime = 10 * time.Minute
	// assertionDrift backdates iat to tolerate clock skew.
	assertionDrift = 60 * time.Second
	// refreshMargin forces a refresh before the installation token
	// actually expires so no in-flight call carries a dead credential.
	refreshMargin = 2 * time.Minute
)

// AppProvider authenticates as a GitHub App installation: it signs a
// short-lived RS256 assertion and exchanges it for an installation
// access token, caching the result until near expiry.
type AppProvider struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
	baseURL        string
	httpClient     *http.Client

	mu     sync.Mutex
	cached *oauth2.Token
	group  singleflight.Group
}

// NewAppProvider loads the app's PEM private key and returns a provider.
// baseURL defaults to the public GitHub API when empty.
func NewAppProvider(appID, installationID int64, privateKeyPath, baseURL string) (*AppProvider, error) {
	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %v", ErrAuth, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrAuth, err)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &AppProvider{
		appID:          appID,
		installationID: installationID,
		key:            key,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Token returns a currently valid installation token, refreshing it
// first when absent or within refreshMargin of expiry. Concurrent
// callers needing a refresh coalesce into one token exchange.
func (p *AppProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()

	if cached != nil && time.Until(cached.Expiry) > refreshMargin {
		return cached.AccessToken, nil
	}

	v, err, _ := p.group.Do("installation-token", func() (interface{}, error) {
		return p.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

func (p *AppProvider) exchange(ctx context.Context) (*oauth2.Token, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return nil, fmt.Errorf("%w: sign assertion: %v", ErrAuth, err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", p.baseURL, p.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrAuth, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: token exchange returned %d", ErrAuth, resp.StatusCode)
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}

	tok := &oauth2.Token{AccessToken: payload.Token, Expiry: payload.ExpiresAt}
	p.mu.Lock()
	p.cached = tok
	p.mu.Unlock()
	return tok, nil
}

func (p *AppProvider) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionDrift)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		Issuer:    strconv.FormatInt(p.appID, 10),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
}

// authTransport injects the provider's bearer credential into every
// outbound request so no call can bypass authentication.
type authTransport struct {
	base     http.RoundTripper
	provider Provider
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.provider.Token(req.Context())
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
