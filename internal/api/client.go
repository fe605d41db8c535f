package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var (
	ErrUnauthorized   = errors.New("api: session is invalid or expired")
	ErrAccountBlocked = errors.New("api: account is blocked")
	ErrNotFound       = errors.New("api: resource not found")
	ErrBackend        = errors.New("api: backend request failed")
)

type authKey struct{}

type authInfo struct {
	SessionID string
	Token     string
}

// WithAuth attaches the caller's session credentials to the context. Every
// request made with this context carries the bearer token, and a 401 response
// reports the session ID to the unauthorized callback.
func WithAuth(ctx context.Context, sessionID, token string) context.Context {
	return context.WithValue(ctx, authKey{}, authInfo{SessionID: sessionID, Token: token})
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(authKey{}).(authInfo)
	return info, ok
}

// Client wraps a JSON-over-HTTP API. Every 401 response triggers the
// registered unauthorized callback exactly once before the call returns, so
// session teardown lives in one place instead of at each call site.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *log.Logger
	onUnauthorized func(ctx context.Context, sessionID string)
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// OnUnauthorized registers the callback invoked whenever the backend answers
// 401. Must be set during wiring, before the client is shared.
func (c *Client) OnUnauthorized(fn func(ctx context.Context, sessionID string)) {
	c.onUnauthorized = fn
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Blocked bool   `json:"blocked"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth, hasAuth := authFromContext(ctx)
	if hasAuth && auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(ctx, auth, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) errorFromResponse(ctx context.Context, auth authInfo, resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &eb); err != nil {
			eb.Message = string(raw)
		}
	}
	if eb.Message == "" {
		eb.Message = eb.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.onUnauthorized != nil && auth.SessionID != "" {
			c.onUnauthorized(ctx, auth.SessionID)
		}
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden && eb.Blocked:
		return ErrAccountBlocked
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		if c.logger != nil {
			c.logger.Printf("Backend error %d on %s: %s", resp.StatusCode, resp.Request.URL.Path, eb.Message)
		}
		if eb.Message != "" {
			return fmt.Errorf("%w: %s", ErrBackend, eb.Message)
		}
		return fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}
}
