// Package restclient is a small JSON-over-HTTP client that injects bearer
// tokens and request ids.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"applyassist/internal/infra/logging"
)

// TokenSource yields the bearer token for the next request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for fixed credentials such as API keys.
type StaticToken string

func (s StaticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatus lets callers classify the failure without importing this package.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	headers http.Header
	log     *zerolog.Logger
}

// New validates baseURL and returns a client. tokens may be nil.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger *zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		headers: http.Header{},
		log:     logging.Component(logger, "restclient"),
	}, nil
}

// WithTokens returns a copy of c using tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// WithHeader returns a copy of c that sends the header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	cp := *c
	cp.headers = c.headers.Clone()
	cp.headers.Set(key, value)
	return &cp
}

// Do sends in (if non-nil) as JSON and decodes a 2xx body into out (if non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := ulid.Make().String()
	req.Header.Set("X-Request-ID", reqID)
	if c.tokens != nil {
		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("token lookup failed; sending unauthenticated")
		} else if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("http_call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(raw), Body: raw}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
