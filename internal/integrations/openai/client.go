package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// chatRequest is the request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Tools       []toolDefinition     `json:"tools,omitempty"`
	ToolChoice  string               `json:"tool_choice,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
}

type toolDefinition struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

type functionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int                `json:"index"`
		Message      domain.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

// moderationRequest is the request shape for the Moderations endpoint.
type moderationRequest struct {
	Input string `json:"input"`
}

// moderationResponse is the minimal response shape for the Moderations endpoint.
type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// KeySource yields the API key. It is consulted on every request so that a
// rotated key is picked up without a restart.
type KeySource interface {
	Resolve(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ChatRequest is a single chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []domain.ChatMessage
	Tools       []domain.ToolSpec
	Temperature *float64
}

// Client is a focused OpenAI-compatible client for chat completions and
// moderation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	key        KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client that authenticates with the key yielded by
// key.
func NewClient(key KeySource, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, errors.New("openai: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	key, err := c.key.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: resolve api key: %w", err)
	}
	if key == "" {
		return "", errors.New("openai: API token is empty")
	}
	return key, nil
}

// resolvedHTTPClient returns the configured HTTP client, or a default if none
// was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + path
	}
	return base + "/v1" + path
}

func chatURL(baseURL string) string {
	return endpointURL(baseURL, "/chat/completions")
}

func moderationURL(baseURL string) string {
	return endpointURL(baseURL, "/moderations")
}

// Chat performs one chat completion and returns the first choice's message,
// which may carry tool calls instead of content.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (domain.ChatMessage, error) {
	if in.Model == "" {
		return domain.ChatMessage{}, errors.New("openai: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	req := chatRequest{
		Model:       in.Model,
		Messages:    in.Messages,
		Temperature: in.Temperature,
	}
	for _, t := range in.Tools {
		req.Tools = append(req.Tools, toolDefinition{
			Type: "function",
			Function: functionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	url := chatURL(c.baseURL)
	raw, err := c.postJSON(ctx, url, apiKey, req)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.ChatMessage{}, fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return domain.ChatMessage{}, errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message, nil
}

// Moderate calls the Moderations API and returns true if the input is flagged.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return false, err
	}

	url := moderationURL(c.baseURL)
	raw, err := c.postJSON(ctx, url, apiKey, moderationRequest{Input: input})
	if err != nil {
		return false, fmt.Errorf("openai: moderation request failed: %w", err)
	}

	var payload moderationResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return false, fmt.Errorf("openai: decode moderation response: %w", decErr)
	}
	if len(payload.Results) == 0 {
		return false, errors.New("openai: no results in moderation response")
	}
	return payload.Results[0].Flagged, nil
}

func (c *Client) postJSON(ctx context.Context, url, apiKey string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.doJSONRequest(req, url)
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
