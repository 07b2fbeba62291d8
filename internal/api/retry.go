package api

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy configures retry behavior for idempotent reads.
type RetryPolicy struct {
	// MaxAttempts counts the first try; 0 means 3.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; 0 means 100ms.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay; 0 means 10s.
	MaxBackoff time.Duration
	// Multiplier grows the delay per attempt; 0 means 2.
	Multiplier float64
	// Jitter randomizes the delay by the given fraction; 0.1 means ±10%.
	Jitter float64
	// RetryableStatuses lists HTTP statuses worth retrying. Empty selects
	// 429, 502, 503 and 504.
	RetryableStatuses []int
}

// DefaultRetryPolicy returns the standard backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		RetryableStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if len(p.RetryableStatuses) == 0 {
		p.RetryableStatuses = d.RetryableStatuses
	}
	return p
}

func (p RetryPolicy) retryable(err error) bool {
	if IsSessionExpired(err) {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	status := StatusOf(err)
	if status == 0 {
		// Transport failure.
		return true
	}
	for _, s := range p.RetryableStatuses {
		if status == s {
			return true
		}
	}
	return false
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if capped := float64(p.MaxBackoff); delay > capped {
		delay = capped
	}
	if p.Jitter > 0 {
		delta := delay * p.Jitter
		delay = delay - delta + rand.Float64()*2*delta
	}
	return time.Duration(delay)
}

// RetryClient is a client view that retries failed GETs. Unsafe methods pass
// through untouched so a flaky network never double-fires a mutation.
type RetryClient struct {
	*Client
	policy RetryPolicy
}

// WithRetry returns a view of the client whose Get retries per the policy.
func (c *Client) WithRetry(policy RetryPolicy) *RetryClient {
	return &RetryClient{Client: c, policy: policy.withDefaults()}
}

// Get issues a GET, retrying transient failures with exponential backoff.
func (rc *RetryClient) Get(ctx context.Context, path string, out any) error {
	_, err := rc.attempt(ctx, path, func() (*Response, error) {
		return nil, rc.Client.Get(ctx, path, out)
	})
	return err
}

// GetRaw issues a GET with retry and returns the raw response.
func (rc *RetryClient) GetRaw(ctx context.Context, path string) (*Response, error) {
	return rc.attempt(ctx, path, func() (*Response, error) {
		return rc.Client.DoRaw(ctx, http.MethodGet, path, nil)
	})
}

func (rc *RetryClient) attempt(ctx context.Context, path string, call func() (*Response, error)) (*Response, error) {
	var (
		resp    *Response
		lastErr error
	)
	for attempt := 0; attempt < rc.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &Error{Status: 0, Code: CodeNetwork, Path: path, cause: ctx.Err()}
			case <-time.After(rc.policy.backoff(attempt - 1)):
			}
		}
		resp, lastErr = call()
		if lastErr == nil || !rc.policy.retryable(lastErr) {
			return resp, lastErr
		}
	}
	return resp, lastErr
}
