package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmulyadi/Github-Agent/internal/domain"
	"github.com/jmulyadi/Github-Agent/internal/integrations/github"
	"github.com/jmulyadi/Github-Agent/internal/integrations/openai"
)

// DefaultMaxRounds bounds model calls per turn.
const DefaultMaxRounds = 8

// ChatModel is the LLM dependency of GitHubAgent.
type ChatModel interface {
	Chat(ctx context.Context, in openai.ChatRequest) (domain.ChatMessage, error)
}

// Moderator screens a query before the model sees it.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

// Config configures a GitHubAgent.
type Config struct {
	Model     ChatModel
	ModelName string
	// Moderator is optional; nil skips the check.
	Moderator Moderator
	// MaxRounds defaults to DefaultMaxRounds when zero.
	MaxRounds int
	// GitHubBaseURL overrides the public API root.
	GitHubBaseURL string
	Logger        *slog.Logger
}

// GitHubAgent answers questions with a tool-calling loop over the GitHub
// REST API.
type GitHubAgent struct {
	model         ChatModel
	modelName     string
	moderator     Moderator
	maxRounds     int
	githubBaseURL string
	logger        *slog.Logger

	// newGitHub builds the per-run API client; replaced in tests.
	newGitHub func(deps Deps, baseURL string, logger *slog.Logger) (githubAPI, error)
}

var _ Runner = (*GitHubAgent)(nil)

// NewGitHubAgent validates cfg and returns an agent.
func NewGitHubAgent(cfg Config) (*GitHubAgent, error) {
	if cfg.Model == nil {
		return nil, errors.New("agent: model must not be nil")
	}
	if strings.TrimSpace(cfg.ModelName) == "" {
		return nil, errors.New("agent: model name must not be empty")
	}
	if cfg.MaxRounds < 0 {
		return nil, errors.New("agent: max rounds must not be negative")
	}
	a := &GitHubAgent{
		model:         cfg.Model,
		modelName:     strings.TrimSpace(cfg.ModelName),
		moderator:     cfg.Moderator,
		maxRounds:     cfg.MaxRounds,
		githubBaseURL: cfg.GitHubBaseURL,
		logger:        cfg.Logger,
		newGitHub:     newGitHubClient,
	}
	if a.maxRounds == 0 {
		a.maxRounds = DefaultMaxRounds
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

func newGitHubClient(deps Deps, baseURL string, logger *slog.Logger) (githubAPI, error) {
	opts := []github.Option{github.WithLogger(logger)}
	if baseURL != "" {
		opts = append(opts, github.WithBaseURL(baseURL))
	}
	return github.NewClient(deps.Client, deps.Credential, opts...)
}

// Run executes one turn. The returned error is opaque to callers beyond the
// package sentinels.
func (a *GitHubAgent) Run(ctx context.Context, query string, history []domain.Turn, deps Deps) (Result, error) {
	if a.moderator != nil {
		flagged, err := a.moderator.Moderate(ctx, query)
		if err != nil {
			return Result{}, fmt.Errorf("agent: moderation: %w", err)
		}
		if flagged {
			return Result{}, ErrFlagged
		}
	}

	gh, err := a.newGitHub(deps, a.githubBaseURL, a.logger)
	if err != nil {
		return Result{}, fmt.Errorf("agent: github client: %w", err)
	}

	messages := buildMessages(query, history)
	tools := toolSpecs()

	for round := 0; round < a.maxRounds; round++ {
		reply, err := a.model.Chat(ctx, openai.ChatRequest{
			Model:    a.modelName,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return Result{}, fmt.Errorf("agent: round %d: %w", round+1, err)
		}

		if len(reply.ToolCalls) == 0 {
			text := strings.TrimSpace(reply.Content)
			if text == "" {
				return Result{}, ErrEmptyAnswer
			}
			return Result{Text: text}, nil
		}

		reply.Role = "assistant"
		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			a.logger.DebugContext(ctx, "agent tool call", "tool", call.Function.Name, "round", round+1)
			messages = append(messages, domain.ChatMessage{
				Role:       "tool",
				Content:    executeTool(ctx, gh, call),
				ToolCallID: call.ID,
			})
		}
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("agent: %w", err)
		}
	}
	return Result{}, fmt.Errorf("%w (%d)", ErrMaxRounds, a.maxRounds)
}
