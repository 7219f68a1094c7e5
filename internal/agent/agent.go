// Package agent runs the GitHub assistant for one conversation turn.
package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

var (
	// ErrMaxRounds is returned when the model keeps requesting tools past the
	// configured round budget.
	ErrMaxRounds = errors.New("agent: max tool rounds exceeded")
	// ErrEmptyAnswer is returned when the model finishes without text.
	ErrEmptyAnswer = errors.New("agent: empty answer")
	// ErrFlagged is returned when the moderation check rejects the query.
	ErrFlagged = errors.New("agent: query flagged by moderation")
)

// Deps are the per-request resources handed to a run. Client is owned by the
// caller and released after the run returns.
type Deps struct {
	Client     *http.Client
	Credential string
}

// Result is the agent's final answer.
type Result struct {
	Text string
}

// Runner executes one agent turn over the prior conversation.
type Runner interface {
	Run(ctx context.Context, query string, history []domain.Turn, deps Deps) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, query string, history []domain.Turn, deps Deps) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, query string, history []domain.Turn, deps Deps) (Result, error) {
	return f(ctx, query, history, deps)
}
