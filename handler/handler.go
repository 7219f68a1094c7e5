// Package handler exposes the turn endpoint as an API Gateway proxy handler
// with a net/http adapter for local runs.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/jmulyadi/Github-Agent/internal/usecase"
)

const (
	// RoutePath is the turn endpoint.
	RoutePath = "/api/github-agent"
	// LegacyRoutePath is accepted for existing clients.
	LegacyRoutePath = "/api/pydantic-github-agent"
	HealthPath      = "/health"

	correlationHeader = "X-Correlation-Id"
)

var newUUID = uuid.NewString

// TurnSubmitter runs one conversation turn.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

// Authorizer validates the Authorization header of a request.
type Authorizer interface {
	Check(ctx context.Context, authorization string) error
}

type turnRequest struct {
	Query     string `json:"query"`
	ChatID    string `json:"chat_id"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
}

type turnResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// errorMapping decides the status and body shape per use-case error code.
// Store faults keep the {success:false} envelope; the rest report the code.
var errorMapping = map[usecase.ErrorCode]struct {
	status      int
	successBody bool
}{
	usecase.ErrorInvalidInput:         {status: http.StatusBadRequest},
	usecase.ErrorUnauthorized:         {status: http.StatusUnauthorized},
	usecase.ErrorConfigurationMissing: {status: http.StatusInternalServerError},
	usecase.ErrorStoreUnavailable:     {status: http.StatusInternalServerError, successBody: true},
	usecase.ErrorMalformedRecord:      {status: http.StatusInternalServerError, successBody: true},
	usecase.ErrorAgentProcessing:      {status: http.StatusOK, successBody: true},
	usecase.ErrorInternal:             {status: http.StatusInternalServerError},
}

type Handler struct {
	uc     TurnSubmitter
	auth   Authorizer
	logger *slog.Logger
}

type Option func(*Handler)

// WithAuthorizer enables the bearer guard on the turn endpoint.
func WithAuthorizer(a Authorizer) Option {
	return func(h *Handler) {
		h.auth = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(uc TurnSubmitter, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves one API Gateway proxy event.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newUUID()
	}
	log := h.logger.With("correlation_id", correlationID)

	path := strings.TrimRight(event.Path, "/")
	switch {
	case event.HTTPMethod == http.MethodOptions:
		return respond(correlationID, http.StatusNoContent, nil), nil
	case path == HealthPath && event.HTTPMethod == http.MethodGet:
		return respond(correlationID, http.StatusOK, healthResponse{Status: "ok"}), nil
	case path != RoutePath && path != LegacyRoutePath:
		return respond(correlationID, http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}), nil
	case event.HTTPMethod != http.MethodPost:
		return respond(correlationID, http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}), nil
	}

	if h.auth != nil {
		if err := h.auth.Check(ctx, headerValue(event.Headers, "Authorization")); err != nil {
			log.WarnContext(ctx, "request rejected", "err", err)
			return h.errorResponse(correlationID, err), nil
		}
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return respond(correlationID, http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
		}
		body = string(decoded)
	}
	var req turnRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		log.InfoContext(ctx, "invalid request body", "err", err)
		return respond(correlationID, http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}

	out, err := h.uc.SubmitTurn(ctx, usecase.TurnInput{
		Query:     req.Query,
		ChatID:    req.ChatID,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
	})
	if err != nil {
		log.ErrorContext(ctx, "turn rejected", "code", usecase.CodeOf(err), "err", err)
		return h.errorResponse(correlationID, err), nil
	}
	return respond(correlationID, http.StatusOK, turnResponse{Success: out.Success}), nil
}

func (h *Handler) errorResponse(correlationID string, err error) events.APIGatewayProxyResponse {
	code := usecase.CodeOf(err)
	m, ok := errorMapping[code]
	if !ok {
		m = errorMapping[usecase.ErrorInternal]
		code = usecase.ErrorInternal
	}
	if m.successBody {
		return respond(correlationID, m.status, turnResponse{Success: false})
	}
	return respond(correlationID, m.status, errorResponse{Error: string(code)})
}

func respond(correlationID string, status int, payload any) events.APIGatewayProxyResponse {
	headers := map[string]string{
		correlationHeader:              correlationID,
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Authorization, Content-Type, X-Correlation-Id",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
	resp := events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	if payload == nil {
		return resp
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		encoded = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	headers["Content-Type"] = "application/json"
	resp.Body = string(encoded)
	return resp
}

// headerValue looks a header up case-insensitively; API Gateway preserves the
// client's casing.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
