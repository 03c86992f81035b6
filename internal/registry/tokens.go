package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CustodianSync/internal/domain/models"
	xhttp "CustodianSync/pkg/http"
)

// tokenEntry is one cached bearer token with its expiry.
type tokenEntry struct {
	token   string
	expires time.Time
}

// ConnResolver resolves a connection's auth config by id.
type ConnResolver func(ctx context.Context, connectionID string) (*models.CustodianConnection, error)

// TokenManager owns per-connection bearer tokens: cached with explicit
// expiry, refreshed on demand under a per-connection lock. Replaces the
// process-global token storage of older integrations.
type TokenManager struct {
	resolve ConnResolver
	client  *xhttp.Client

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	tokens map[string]tokenEntry

	now func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(resolve ConnResolver, timeout time.Duration) *TokenManager {
	return &TokenManager{
		resolve: resolve,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		locks:   make(map[string]*sync.Mutex),
		tokens:  make(map[string]tokenEntry),
		now:     time.Now,
	}
}

func (m *TokenManager) lockFor(connectionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[connectionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[connectionID] = l
	}
	return l
}

// Token returns a cached token, fetching a fresh one when missing or
// expired.
func (m *TokenManager) Token(ctx context.Context, connectionID string) (string, error) {
	l := m.lockFor(connectionID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	entry, ok := m.tokens[connectionID]
	m.mu.Unlock()
	if ok && m.now().Before(entry.expires) {
		return entry.token, nil
	}
	return m.fetchLocked(ctx, connectionID)
}

// Refresh discards any cached token and fetches a new one.
func (m *TokenManager) Refresh(ctx context.Context, connectionID string) (string, error) {
	l := m.lockFor(connectionID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	delete(m.tokens, connectionID)
	m.mu.Unlock()
	return m.fetchLocked(ctx, connectionID)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (m *TokenManager) fetchLocked(ctx context.Context, connectionID string) (string, error) {
	conn, err := m.resolve(ctx, connectionID)
	if err != nil {
		return "", fmt.Errorf("resolve connection: %w", err)
	}
	auth := conn.Config.Authentication
	if auth.TokenURL == "" {
		// Custodians without a token endpoint authenticate per request.
		return auth.ClientSecret, nil
	}

	var tr tokenResponse
	err = m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     auth.TokenURL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     auth.ClientID,
			"client_secret": auth.ClientSecret,
		},
	}, &tr)
	if err != nil {
		return "", &models.ConnectivityError{Op: "token fetch", Err: err}
	}

	expiry := m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	// Refresh a little early so in-flight requests never carry a token
	// at the edge of expiry.
	expiry = expiry.Add(-30 * time.Second)

	m.mu.Lock()
	m.tokens[connectionID] = tokenEntry{token: tr.AccessToken, expires: expiry}
	m.mu.Unlock()
	return tr.AccessToken, nil
}
