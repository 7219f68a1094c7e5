package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

// fakeKey is a minimal KeySource stub.
type fakeKey struct {
	val   string
	err   error
	calls int
}

func (f *fakeKey) Resolve(context.Context) (string, error) {
	f.calls++
	return f.val, f.err
}

// ---------------------------------------------------------------------------
// URL helpers
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestModerationURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/moderations"},
		{"http://localhost:8080/", "http://localhost:8080/v1/moderations"},
		{"", "https://api.openai.com/v1/moderations"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, moderationURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient / key resolution
// ---------------------------------------------------------------------------

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeKey{val: "sk"})
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.NotNil(t, c.httpClient)
}

func TestResolveAPIKey_Error(t *testing.T) {
	c, err := NewClient(&fakeKey{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestResolveAPIKey_Empty(t *testing.T) {
	c, err := NewClient(&fakeKey{})
	require.NoError(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeKey{val: "sk-test"},
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotContains(t, string(reqBody), `"tools"`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1670000000,
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" },
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	msg, err := c.Chat(context.Background(), ChatRequest{
		Model:    "gpt-mock",
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", msg.Content)
	require.Empty(t, msg.ToolCalls)
}

func TestClient_Chat_SendsToolsAndDecodesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Len(t, got.Tools, 1)
		require.Equal(t, "function", got.Tools[0].Type)
		require.Equal(t, "get_issue", got.Tools[0].Function.Name)
		require.JSONEq(t, `{"type":"object"}`, string(got.Tools[0].Function.Parameters))
		require.Equal(t, "auto", got.ToolChoice)
		require.Equal(t, "tool", got.Messages[1].Role)
		require.Equal(t, "call_0", got.Messages[1].ToolCallID)

		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{
			"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_issue","arguments":"{\"number\":7}"}}]
		},"finish_reason":"tool_calls"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	msg, err := c.Chat(context.Background(), ChatRequest{
		Model: "gpt-mock",
		Messages: []domain.ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "tool", Content: "{}", ToolCallID: "call_0"},
		},
		Tools: []domain.ToolSpec{{Name: "get_issue", Description: "Fetch an issue", Parameters: []byte(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	require.Empty(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "call_1", msg.ToolCalls[0].ID)
	require.Equal(t, `{"number":7}`, msg.ToolCalls[0].Function.Arguments)
}

func TestClient_Chat_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 429, statusErr.HTTPStatusCode())
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), ChatRequest{Model: "gpt-mock"})
	require.Error(t, err)
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	key := &fakeKey{val: "sk-test"}
	c, err := NewClient(key)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
	require.Zero(t, key.calls)
}

// ---------------------------------------------------------------------------
// Client.Moderate
// ---------------------------------------------------------------------------

func TestClient_Moderate_NotFlagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/moderations", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"flagged":false}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	flagged, err := c.Moderate(context.Background(), "List open issues in golang/go")
	require.NoError(t, err)
	require.False(t, flagged)
}

func TestClient_Moderate_Flagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"flagged":true}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	flagged, err := c.Moderate(context.Background(), "some unsafe content")
	require.NoError(t, err)
	require.True(t, flagged)
}

func TestClient_Moderate_500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Moderate(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestClient_Moderate_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Moderate(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no results")
}

func TestClient_Moderate_NetworkError(t *testing.T) {
	c, err := NewClient(&fakeKey{val: "sk-test"}, WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Moderate(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
