package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func TestStaticTokenProvider(t *testing.T) {
	p, err := NewStaticTokenProvider("ghp_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tok, err := p.Token(context.Background())
	if err != nil || tok != "ghp_test" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
}

func TestStaticTokenProvider_EmptyToken(t *testing.T) {
	if _, err := NewStaticTokenProvider(""); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestNewAppProvider_BadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAppProvider(1, 2, path, ""); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if _, err := NewAppProvider(1, 2, filepath.Join(t.TempDir(), "missing.pem"), ""); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth for missing file, got %v", err)
	}
}

func TestAppProvider_ExchangesSignedAssertion(t *testing.T) {
	keyPath, key := writeTestKey(t)

	var gotAssertion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/app/installations/42/access_tokens") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAssertion = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":"ghs_fresh","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer server.Close()

	p, err := NewAppProvider(12345, 42, keyPath, server.URL)
	if err != nil {
		t.Fatalf("NewAppProvider: %v", err)
	}
	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "ghs_fresh" {
		t.Fatalf("token = %q, want ghs_fresh", tok)
	}

	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(gotAssertion, &claims, func(tk *jwt.Token) (interface{}, error) {
		if tk.Method.Alg() != "RS256" {
			return nil, fmt.Errorf("unexpected alg %s", tk.Method.Alg())
		}
		return &key.PublicKey, nil
	})
	if err != nil {
		t.Fatalf("assertion did not verify: %v", err)
	}
	if claims.Issuer != "12345" {
		t.Fatalf("issuer = %q, want app ID", claims.Issuer)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > assertionLifetime+assertionDrift {
		t.Fatal("assertion lifetime exceeds the allowed window")
	}
}

func TestAppProvider_CoalescesConcurrentRefreshes(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	var exchanges int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&exchanges, 1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":"ghs_shared","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer server.Close()

	p, err := NewAppProvider(12345, 42, keyPath, server.URL)
	if err != nil {
		t.Fatalf("NewAppProvider: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	toks := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			toks[i], errs[i] = p.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if toks[i] != "ghs_shared" {
			t.Fatalf("caller %d got %q", i, toks[i])
		}
	}
	if n := atomic.LoadInt64(&exchanges); n != 1 {
		t.Fatalf("expected a single token exchange, got %d", n)
	}
}

func TestAppProvider_RefreshesNearExpiry(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	var exchanges int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&exchanges, 1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":"ghs_%d","expires_at":%q}`, n, time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer server.Close()

	p, err := NewAppProvider(12345, 42, keyPath, server.URL)
	if err != nil {
		t.Fatalf("NewAppProvider: %v", err)
	}

	// A token inside the refresh margin must not be served again.
	p.cached = &oauth2.Token{AccessToken: "ghs_stale", Expiry: time.Now().Add(30 * time.Second)}

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok == "ghs_stale" {
		t.Fatal("near-expiry token was served without a refresh")
	}

	// A fresh token is reused without another exchange.
	again, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if again != tok {
		t.Fatalf("expected cached token %q, got %q", tok, again)
	}
	if n := atomic.LoadInt64(&exchanges); n != 1 {
		t.Fatalf("expected one exchange, got %d", n)
	}
}

func TestAppProvider_ExchangeRejection(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewAppProvider(12345, 42, keyPath, server.URL)
	if err != nil {
		t.Fatalf("NewAppProvider: %v", err)
	}
	if _, err := p.Token(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
