package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmulyadi/Github-Agent/internal/agent"
	"github.com/jmulyadi/Github-Agent/internal/domain"
	"github.com/jmulyadi/Github-Agent/internal/history"
	"github.com/jmulyadi/Github-Agent/internal/repository"
)

// FallbackMessage is persisted as the agent's reply when processing fails
// after the query was recorded.
const FallbackMessage = "I apologize, but I encountered an error processing your request."

const (
	defaultFailureTimeout = 5 * time.Second
	defaultHTTPTimeout    = 30 * time.Second
)

// State is a point in the request lifecycle.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateHistoryLoaded    State = "HISTORY_LOADED"
	StateQueryPersisted   State = "QUERY_PERSISTED"
	StateAgentInvoked     State = "AGENT_INVOKED"
	StateOutcomePersisted State = "OUTCOME_PERSISTED"
	StateResponded        State = "RESPONDED"
	StateFaulted          State = "FAULTED"
	StateDoublyFaulted    State = "DOUBLY_FAULTED"
)

// TranscriptStore is the persistence dependency of TurnService.
type TranscriptStore interface {
	Fetch(ctx context.Context, sessionID, chatID string, limit int) ([]domain.MessageRecord, error)
	Append(ctx context.Context, sessionID, chatID, msgType, content string, data map[string]string) error
}

type TurnInput struct {
	Query     string
	ChatID    string
	RequestID string
	SessionID string
}

// TurnOutput is the outcome of a turn. Fault carries the processing fault on
// the degraded path; it never reaches the wire.
type TurnOutput struct {
	Success bool
	State   State
	Fault   error
}

// TurnService runs the request lifecycle: load history, persist the query,
// invoke the agent, persist the outcome.
type TurnService struct {
	store          TranscriptStore
	runner         agent.Runner
	credential     SecretSource
	historyLimit   int
	mode           history.ValidationMode
	failureTimeout time.Duration
	httpTimeout    time.Duration
	logger         *slog.Logger
	newTransport   func() http.RoundTripper
}

type TurnOption func(*TurnService)

// WithHistoryLimit sets how many prior records are loaded per turn.
func WithHistoryLimit(n int) TurnOption {
	return func(s *TurnService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithValidationMode(mode history.ValidationMode) TurnOption {
	return func(s *TurnService) {
		s.mode = mode
	}
}

func WithLogger(logger *slog.Logger) TurnOption {
	return func(s *TurnService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailureTimeout bounds the fallback write, which runs detached from the
// caller's cancellation.
func WithFailureTimeout(d time.Duration) TurnOption {
	return func(s *TurnService) {
		if d > 0 {
			s.failureTimeout = d
		}
	}
}

// WithHTTPTimeout bounds each outbound request of the agent's HTTP client.
func WithHTTPTimeout(d time.Duration) TurnOption {
	return func(s *TurnService) {
		if d > 0 {
			s.httpTimeout = d
		}
	}
}

// WithTransport replaces the per-turn transport factory.
func WithTransport(newTransport func() http.RoundTripper) TurnOption {
	return func(s *TurnService) {
		if newTransport != nil {
			s.newTransport = newTransport
		}
	}
}

func NewTurnService(store TranscriptStore, runner agent.Runner, credential SecretSource, opts ...TurnOption) (*TurnService, error) {
	if store == nil {
		return nil, errors.New("usecase: transcript store must not be nil")
	}
	if runner == nil {
		return nil, errors.New("usecase: agent runner must not be nil")
	}
	if credential == nil {
		return nil, errors.New("usecase: credential source must not be nil")
	}
	s := &TurnService{
		store:          store,
		runner:         runner,
		credential:     credential,
		historyLimit:   repository.DefaultHistoryLimit,
		mode:           history.Lenient,
		failureTimeout: defaultFailureTimeout,
		httpTimeout:    defaultHTTPTimeout,
		logger:         slog.Default(),
		newTransport:   defaultTransport,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func defaultTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return http.DefaultTransport
}

func (in TurnInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Query) == "" {
		missing = append(missing, "query")
	}
	if strings.TrimSpace(in.ChatID) == "" {
		missing = append(missing, "chat_id")
	}
	if strings.TrimSpace(in.RequestID) == "" {
		missing = append(missing, "request_id")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		missing = append(missing, "session_id")
	}
	if len(missing) > 0 {
		return newError(ErrorInvalidInput, "missing_"+strings.Join(missing, "_"), nil)
	}
	return nil
}

// SubmitTurn processes one user query. A returned error means the request
// was rejected before anything was written; processing faults after that
// point are persisted and reported as Success false with a nil error.
func (s *TurnService) SubmitTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if err := in.validate(); err != nil {
		return TurnOutput{State: StateFaulted}, err
	}
	log := s.logger.With("session_id", in.SessionID, "chat_id", in.ChatID, "request_id", in.RequestID)

	records, err := s.store.Fetch(ctx, in.SessionID, in.ChatID, s.historyLimit)
	if err != nil {
		log.ErrorContext(ctx, "history load failed", "state", StateFaulted, "err", err)
		return TurnOutput{State: StateFaulted}, newError(ErrorStoreUnavailable, "history_fetch_error", err)
	}
	turns, err := history.Reconstruct(records, s.mode)
	if err != nil {
		log.ErrorContext(ctx, "history reconstruct failed", "state", StateFaulted, "err", err)
		return TurnOutput{State: StateFaulted}, newError(ErrorMalformedRecord, "history_malformed_record", err)
	}
	log.DebugContext(ctx, "history loaded", "state", StateHistoryLoaded, "turns", len(turns))

	if err := s.store.Append(ctx, in.SessionID, in.ChatID, domain.MessageTypeUser, in.Query, nil); err != nil {
		log.ErrorContext(ctx, "query persist failed", "state", StateFaulted, "err", err)
		return TurnOutput{State: StateFaulted}, newError(ErrorStoreUnavailable, "query_persist_error", err)
	}
	log.DebugContext(ctx, "query persisted", "state", StateQueryPersisted)

	inv := s.invoke(ctx, in.Query, turns)
	if inv.fault == nil {
		log.DebugContext(ctx, "agent invoked", "state", StateAgentInvoked)
		data := map[string]string{"request_id": in.RequestID}
		if err := s.store.Append(ctx, in.SessionID, in.ChatID, domain.MessageTypeAI, inv.result.Text, data); err != nil {
			inv.fault = fmt.Errorf("persist outcome: %w", err)
		} else {
			log.InfoContext(ctx, "turn completed", "state", StateResponded)
			return TurnOutput{Success: true, State: StateResponded}, nil
		}
	}

	return s.recordFailure(ctx, log, in, fmt.Errorf("%w: %w", ErrAgentProcessing, inv.fault)), nil
}

// invocation is the explicit outcome of the agent step.
type invocation struct {
	result agent.Result
	fault  error
}

// invoke resolves the credential and runs the agent with a request-scoped
// HTTP client that is released on every exit path.
func (s *TurnService) invoke(ctx context.Context, query string, turns []domain.Turn) (inv invocation) {
	credential, err := s.credential.Resolve(ctx)
	if err != nil {
		return invocation{fault: fmt.Errorf("resolve github credential: %w", err)}
	}

	client := &http.Client{Transport: s.newTransport(), Timeout: s.httpTimeout}
	defer client.CloseIdleConnections()
	defer func() {
		if r := recover(); r != nil {
			inv = invocation{fault: fmt.Errorf("agent panic: %v", r)}
		}
	}()

	result, err := s.runner.Run(ctx, query, turns, agent.Deps{Client: client, Credential: credential})
	if err != nil {
		return invocation{fault: fmt.Errorf("agent run: %w", err)}
	}
	return invocation{result: result}
}

// recordFailure appends the fallback reply. It runs on a context detached
// from the caller so a client disconnect does not suppress the write.
func (s *TurnService) recordFailure(ctx context.Context, log *slog.Logger, in TurnInput, fault error) TurnOutput {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.failureTimeout)
	defer cancel()

	data := map[string]string{"error": fault.Error(), "request_id": in.RequestID}
	if err := s.store.Append(writeCtx, in.SessionID, in.ChatID, domain.MessageTypeAI, FallbackMessage, data); err != nil {
		log.ErrorContext(ctx, "failure persist failed",
			"state", StateDoublyFaulted,
			"fault", fault,
			"err", err,
		)
		return TurnOutput{State: StateDoublyFaulted, Fault: errors.Join(fault, fmt.Errorf("persist failure: %w", err))}
	}

	log.WarnContext(ctx, "turn failed", "state", StateOutcomePersisted, "fault", fault)
	return TurnOutput{State: StateResponded, Fault: fault}
}
