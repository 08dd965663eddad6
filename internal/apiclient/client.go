// Package apiclient talks to the credentialing REST API on behalf of the
// current session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sesamum.org/internal/auth"
	"sesamum.org/internal/obs"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	NetworkMessage    = "Network error. Please check your connection."
	fallbackAPIError  = "An error occurred"
	unexpectedMessage = "An unexpected error occurred"

	maxErrorBody = 64 << 10
)

// ErrNetwork reports that no response was received.
var ErrNetwork = errors.New("apiclient: network error")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// ErrorMessage turns any error from this package into a message suitable
// for an operator.
func ErrorMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return NetworkMessage
	default:
		return unexpectedMessage
	}
}

// messageError shows ErrorMessage text while keeping the cause for
// errors.Is and errors.As.
type messageError struct {
	msg string
	err error
}

func (e *messageError) Error() string { return e.msg }
func (e *messageError) Unwrap() error { return e.err }

// WithErrorMessages wraps fn so its failures read as ErrorMessage text, the
// form shown to users.
func WithErrorMessages[T any](fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, &messageError{msg: ErrorMessage(err), err: err}
		}
		return v, nil
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Credentials supplies request decoration and reacts to rejected tokens.
// *session.Session implements it.
type Credentials interface {
	AccessToken(ctx context.Context) (string, bool)
	DevRole(ctx context.Context) auth.Role
	Logout(ctx context.Context, reason string) error
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithCredentials(creds Credentials) Option {
	return func(c *Client) { c.creds = creds }
}

// WithRateLimit throttles outgoing requests; perSec <= 0 disables it.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do sends a JSON request and decodes a JSON response into out when out is
// non-nil. A 401 drops the session tokens and broadcasts a logout.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if token, ok := c.creds.AccessToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if role := c.creds.DevRole(ctx); role != "" {
			req.Header.Set("X-User-Role", string(role))
		}
	}

	label := obs.CanonicalPath(path)
	start := time.Now()
	resp, err := c.http.Do(req)
	obs.UpstreamDuration.WithLabelValues(method, label).Observe(time.Since(start).Seconds())
	if err != nil {
		obs.UpstreamRequests.WithLabelValues(method, label, "error").Inc()
		obs.Warn("api request failed: no response", map[string]any{"method": method, "path": path, "err": err})
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	obs.UpstreamRequests.WithLabelValues(method, label, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		apiErr := decodeError(resp, method, path)
		if c.creds != nil {
			_ = c.creds.Logout(ctx, "unauthorized")
		}
		return apiErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp, method, path)
		obs.Warn("api error response", map[string]any{"method": method, "path": path, "status": resp.StatusCode, "message": apiErr.Message})
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response, method, path string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path, Message: fallbackAPIError}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var payload struct {
		Detail  any `json:"detail"`
		Message any `json:"message"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return apiErr
	}
	if msg := textOf(payload.Detail); msg != "" {
		apiErr.Message = msg
	} else if msg := textOf(payload.Message); msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

// textOf renders a detail/message field, which may be any JSON value.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Ping reports whether the API host answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	_ = resp.Body.Close()
	return nil
}
