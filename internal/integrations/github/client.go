// Package github is a small read-only GitHub REST client used by the agent's
// tools. A Client is built per request around the request-scoped HTTP client
// and credential.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"
	// apiVersion pins the REST API version header.
	apiVersion = "2022-11-28"
	// maxRetryWait caps the single rate-limit backoff.
	maxRetryWait = 10 * time.Second
	maxBodyBytes = 4 << 20
)

// Client is a token-authenticated GitHub REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client that sends requests through httpClient.
func NewClient(httpClient *http.Client, token string, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("github: http client must not be nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("github: token must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		token:      token,
		logger:     slog.Default(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// get fetches path (relative to the base URL, or absolute for pagination
// links) and decodes the JSON body into result. It returns the response
// headers for callers that follow Link headers.
func (c *Client) get(ctx context.Context, path string, result any) (http.Header, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + path
	}

	body, header, err := c.do(ctx, url, false)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, fmt.Errorf("github: decode %s: %w", path, err)
		}
	}
	return header, nil
}

func (c *Client) do(ctx context.Context, url string, isRetry bool) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("github: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("github: GET %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("github: read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := parseAPIError(res.StatusCode, body)
		if !isRetry && IsRateLimited(apiErr) {
			if wait := c.retryAfter(res.Header); wait > 0 && wait <= maxRetryWait {
				c.logger.Info("github rate limited, backing off", "duration", wait, "url", url)
				if err := c.sleep(ctx, wait); err != nil {
					return nil, nil, err
				}
				return c.do(ctx, url, true)
			}
		}
		return nil, nil, apiErr
	}
	return body, res.Header, nil
}

// retryAfter reads the backoff from Retry-After, falling back to the
// primary limit reset time.
func (c *Client) retryAfter(h http.Header) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Unix(unix, 0).Sub(c.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}

// listPaged follows rel="next" links until limit items are collected or the
// pages run out.
func listPaged[T any](ctx context.Context, c *Client, path string, limit int) ([]T, error) {
	var all []T
	next := path
	for next != "" && len(all) < limit {
		var page []T
		header, err := c.get(ctx, next, &page)
		if err != nil {
			return all, err
		}
		all = append(all, page...)
		next = parseLinkNext(header.Get("Link"))
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// parseLinkNext extracts the rel="next" URL from a Link header.
//
// Format: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}
