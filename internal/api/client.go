// Package api implements the credentialed HTTP client for the restaurant
// backend. The session rides in an HttpOnly cookie; a readable CSRF cookie
// is echoed back as a header on unsafe methods. Every failure surfaces as a
// *Error so callers classify with errors.As instead of string matching.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dinehall/boardlink/pkg/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 1 << 20 // 1MiB

	defaultCSRFCookie = "csrf_token"
	defaultCSRFHeader = "X-CSRF-Token"
)

// SessionHandler is notified when the backend session has expired. The
// redirect argument is the login path the operator UI should navigate to,
// carrying the original request path.
type SessionHandler interface {
	SessionExpired(redirect string)
}

// SessionHandlerFunc adapts a function to a SessionHandler.
type SessionHandlerFunc func(redirect string)

func (f SessionHandlerFunc) SessionExpired(redirect string) { f(redirect) }

// Config holds client configuration. The zero value of every optional field
// selects a documented default.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.dinehall.example.
	BaseURL string
	// HTTPClient executes requests. When nil a default client is used. A
	// cookie jar is always installed so session and CSRF cookies persist.
	HTTPClient *http.Client
	// Timeout bounds each request; 0 means 30s.
	Timeout time.Duration
	// MaxBodyBytes caps response bodies; 0 means 1MiB.
	MaxBodyBytes int64
	// CSRFCookie and CSRFHeader name the cookie read and header written on
	// unsafe methods. Empty selects csrf_token / X-CSRF-Token.
	CSRFCookie string
	CSRFHeader string
	// AppVersion is sent as X-App-Version on every request.
	AppVersion string
	// RateLimit/RateBurst throttle outbound requests; zero means unlimited.
	RateLimit rate.Limit
	RateBurst int
	// PublicPaths are path prefixes whose 401 responses do not tear down the
	// session. Empty selects the standard guest routes.
	PublicPaths []string
	// Sessions receives the one session-expired notification. Nil is valid.
	Sessions SessionHandler
	Logger   *logger.Logger
}

// Client is a backend API client. It is safe for concurrent use.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	csrfCookie   string
	csrfHeader   string
	appVersion   string
	publicPaths  []string
	sessions     SessionHandler
	limiter      *rate.Limiter
	log          *logger.Logger

	mu      sync.Mutex
	expired bool
}

// Response is a raw backend response for callers that need status or
// headers.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// NoContent reports whether the response intentionally carries no body.
func (r *Response) NoContent() bool {
	return r.StatusCode == http.StatusNoContent || len(r.Body) == 0
}

// JSON decodes the response body into v. A no-content response returns
// ErrNoContent rather than inventing a zero value.
func (r *Response) JSON(v any) error {
	if r.NoContent() {
		return ErrNoContent
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// New creates a client. The base URL must parse, use http or https and
// carry no user info.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: BaseURL must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: BaseURL scheme must be http or https")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("api: BaseURL must not include user info")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodySize
	}
	csrfCookie := cfg.CSRFCookie
	if csrfCookie == "" {
		csrfCookie = defaultCSRFCookie
	}
	csrfHeader := cfg.CSRFHeader
	if csrfHeader == "" {
		csrfHeader = defaultCSRFHeader
	}
	publicPaths := cfg.PublicPaths
	if publicPaths == nil {
		publicPaths = []string{"/login", "/register", "/forgot-password", "/guest/"}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("api")
	}

	return &Client{
		baseURL:      parsed,
		httpClient:   httpClient,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		csrfCookie:   csrfCookie,
		csrfHeader:   csrfHeader,
		appVersion:   cfg.AppVersion,
		publicPaths:  publicPaths,
		sessions:     cfg.Sessions,
		limiter:      limiter,
		log:          log,
	}, nil
}

// Do sends a request and decodes a JSON response body into out when out is
// non-nil. A 204 or empty 2xx body leaves out untouched and returns nil;
// callers that must distinguish use DoRaw.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || resp.NoContent() {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		// A malformed 2xx body is treated as absent rather than fatal.
		c.log.WithError(err).WithField("path", path).Warn("discarding malformed response body")
	}
	return nil
}

// DoRaw sends a request and returns the raw response for any 2xx status.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) (*Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Status: 0, Code: CodeNetwork, Path: path, cause: err}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.appVersion != "" {
		req.Header.Set("X-App-Version", c.appVersion)
	}
	if unsafeMethod(method) {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(c.csrfHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &Error{Status: http.StatusRequestTimeout, Code: CodeTimeout, Path: path, cause: err}
		}
		return nil, &Error{Status: 0, Code: CodeNetwork, Path: path, cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &Error{Status: http.StatusRequestTimeout, Code: CodeTimeout, Path: path, cause: err}
		}
		return nil, &Error{Status: 0, Code: CodeNetwork, Path: path, cause: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && !c.isPublicPath(path) {
		return nil, c.expireSession(path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Status: resp.StatusCode,
			Code:   statusSlug(resp.StatusCode),
			Detail: errorDetail(data),
			Path:   path,
		}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// ResetSession re-arms session-expiry notification after a re-login.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.expired = false
	c.mu.Unlock()
}

// expireSession clears local session state, notifies the handler exactly
// once per expiry and returns the terminal session error.
func (c *Client) expireSession(path string) error {
	redirect := "/login?redirect=" + url.QueryEscape(path)

	c.mu.Lock()
	first := !c.expired
	c.expired = true
	c.mu.Unlock()

	if first {
		if jar, err := cookiejar.New(nil); err == nil {
			c.httpClient.Jar = jar
		}
		c.log.WithField("path", path).Warn("backend session expired")
		if c.sessions != nil {
			c.sessions.SessionExpired(redirect)
		}
	}

	return &Error{Status: http.StatusUnauthorized, Code: CodeSessionExpired, Path: path}
}

func (c *Client) isPublicPath(path string) bool {
	for _, prefix := range c.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) csrfToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == c.csrfCookie {
			return cookie.Value
		}
	}
	return ""
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// errorDetail extracts the backend message from an error body. Backends
// disagree on the key; malformed bodies yield an empty detail.
func errorDetail(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
