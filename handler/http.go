package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// maxRequestBody bounds bodies accepted by the local server.
const maxRequestBody = 1 << 20

// ServeHTTP adapts a net/http request into a proxy event so the same handler
// serves local runs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, `{"error":"INVALID_INPUT"}`, http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		headers[k] = strings.Join(vs, ",")
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(body),
	})
	if err != nil {
		http.Error(w, `{"error":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}
