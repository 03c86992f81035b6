package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
)

func tokenServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		n := atomic.AddInt64(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func tokenResolver(tokenURL string) ConnResolver {
	return func(ctx context.Context, connectionID string) (*models.CustodianConnection, error) {
		return &models.CustodianConnection{
			ID: connectionID,
			Config: models.ConnectionConfig{
				Authentication: models.AuthConfig{
					TokenURL:     tokenURL,
					ClientID:     "client-1",
					ClientSecret: "shh",
				},
			},
		}, nil
	}
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	var hits int64
	srv := tokenServer(t, &hits)
	m := NewTokenManager(tokenResolver(srv.URL), 5*time.Second)

	tok, err := m.Token(context.Background(), "c1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("token = %q", tok)
	}

	again, err := m.Token(context.Background(), "c1")
	if err != nil {
		t.Fatalf("second token: %v", err)
	}
	if again != "tok-1" || atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("token = %q, hits = %d", again, hits)
	}
}

func TestTokenRefetchedAfterExpiry(t *testing.T) {
	var hits int64
	srv := tokenServer(t, &hits)
	m := NewTokenManager(tokenResolver(srv.URL), 5*time.Second)

	if _, err := m.Token(context.Background(), "c1"); err != nil {
		t.Fatalf("token: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	tok, err := m.Token(context.Background(), "c1")
	if err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if tok != "tok-2" || atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("token = %q, hits = %d", tok, hits)
	}
}

func TestTokensIsolatedPerConnection(t *testing.T) {
	var hits int64
	srv := tokenServer(t, &hits)
	m := NewTokenManager(tokenResolver(srv.URL), 5*time.Second)

	a, err := m.Token(context.Background(), "c1")
	if err != nil {
		t.Fatalf("token c1: %v", err)
	}
	b, err := m.Token(context.Background(), "c2")
	if err != nil {
		t.Fatalf("token c2: %v", err)
	}
	if a == b {
		t.Fatalf("connections share a token: %q", a)
	}
	if atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("hits = %d", hits)
	}
}

func TestRefreshDiscardsCache(t *testing.T) {
	var hits int64
	srv := tokenServer(t, &hits)
	m := NewTokenManager(tokenResolver(srv.URL), 5*time.Second)

	if _, err := m.Token(context.Background(), "c1"); err != nil {
		t.Fatalf("token: %v", err)
	}

	tok, err := m.Refresh(context.Background(), "c1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok != "tok-2" || atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("token = %q, hits = %d", tok, hits)
	}
}

func TestTokenWithoutEndpoint(t *testing.T) {
	m := NewTokenManager(tokenResolver(""), 5*time.Second)

	tok, err := m.Token(context.Background(), "c1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "shh" {
		t.Fatalf("token = %q, want client secret passthrough", tok)
	}
}

func TestTokenFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	m := NewTokenManager(tokenResolver(srv.URL), 5*time.Second)
	_, err := m.Token(context.Background(), "c1")
	if err == nil {
		t.Fatalf("expected fetch failure")
	}
	var connErr *models.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("error type %T", err)
	}
}
