package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// TokenSource supplies and refreshes bearer tokens for one connection.
type TokenSource interface {
	Token(ctx context.Context, connectionID string) (string, error)
	Refresh(ctx context.Context, connectionID string) (string, error)
}

// RetryPolicy tunes the HTTP failure handling of the REST path.
type RetryPolicy struct {
	MaxAttempts       int           // retries allowed on 429/5xx before the error is terminal
	BaseDelay         time.Duration // first backoff step
	MaxDelay          time.Duration // backoff cap
	DefaultRetryAfter time.Duration // used when a 429 carries no retry-after
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = 300 * time.Second
	}
	return p
}

type retryCountKey struct{}

// RetryCount returns the number of retries recorded on a request context.
func RetryCount(ctx context.Context) int {
	if n, ok := ctx.Value(retryCountKey{}).(*int); ok {
		return *n
	}
	return 0
}

// retryTransport is the single interceptor layer for custodian REST calls:
// bearer injection, one 401 refresh-and-replay, 429 retry-after sleeps,
// and capped exponential backoff on 5xx.
type retryTransport struct {
	next         http.RoundTripper
	connectionID string
	tokens       TokenSource
	policy       RetryPolicy
	sleep        func(ctx context.Context, d time.Duration) error
	onRetry      func(op string)
}

// NewRetryTransport wraps a transport with the custodian failure policy.
func NewRetryTransport(next http.RoundTripper, connectionID string, tokens TokenSource, policy RetryPolicy, onRetry func(string)) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &retryTransport{
		next:         next,
		connectionID: connectionID,
		tokens:       tokens,
		policy:       policy.withDefaults(),
		sleep:        sleepCtx,
		onRetry:      onRetry,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	retries := 0
	ctx := context.WithValue(req.Context(), retryCountKey{}, &retries)
	req = req.WithContext(ctx)

	token, err := t.tokens.Token(ctx, t.connectionID)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	refreshed := false
	backoff := t.policy.BaseDelay
	attempts := 0

	for {
		attempt, err := t.cloneRequest(req)
		if err != nil {
			return nil, err
		}
		attempt.Header.Set("Authorization", "Bearer "+token)

		resp, err := t.next.RoundTrip(attempt)
		if err != nil {
			return nil, err
		}
		attempts++

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			resp.Body.Close()
			refreshed = true
			retries++
			token, err = t.tokens.Refresh(ctx, t.connectionID)
			if err != nil {
				return nil, fmt.Errorf("token refresh: %w", err)
			}
			if t.onRetry != nil {
				t.onRetry("auth_refresh")
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if attempts > t.policy.MaxAttempts {
				return nil, fmt.Errorf("rate limited after %d attempts", attempts)
			}
			retries++
			wait := t.retryAfter(resp)
			if t.onRetry != nil {
				t.onRetry("rate_limit")
			}
			if err := t.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 500:
			resp.Body.Close()
			if attempts > t.policy.MaxAttempts {
				return nil, fmt.Errorf("server error %d after %d attempts", resp.StatusCode, attempts)
			}
			retries++
			if t.onRetry != nil {
				t.onRetry("server_error")
			}
			if err := t.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > t.policy.MaxDelay {
				backoff = t.policy.MaxDelay
			}

		default:
			return resp, nil
		}
	}
}

func (t *retryTransport) retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return t.policy.DefaultRetryAfter
}

// cloneRequest produces a replayable copy; bodies must expose GetBody,
// which is always the case for requests built from byte buffers.
func (t *retryTransport) cloneRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("clone request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}
