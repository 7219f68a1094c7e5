package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/jmulyadi/Github-Agent/handler"
	"github.com/jmulyadi/Github-Agent/internal/agent"
	"github.com/jmulyadi/Github-Agent/internal/history"
	"github.com/jmulyadi/Github-Agent/internal/integrations/openai"
	"github.com/jmulyadi/Github-Agent/internal/integrations/paramstore"
	"github.com/jmulyadi/Github-Agent/internal/repository"
	"github.com/jmulyadi/Github-Agent/internal/secrets"
	"github.com/jmulyadi/Github-Agent/internal/usecase"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))})))

	// ---- Configuration (read only here) ----
	storeDriver := strings.ToLower(envString("STORE_DRIVER", "dynamodb"))
	paramPrefix := strings.TrimSpace(os.Getenv("PARAM_PREFIX"))
	historyLimit := envInt("HISTORY_LIMIT", repository.DefaultHistoryLimit)
	ttlDays := envInt("TRANSCRIPT_TTL_DAYS", 0)
	enforceAuth := envBool("ENFORCE_AUTH", true)
	openaiBaseURL := envString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	openaiModel := envString("OPENAI_MODEL", "gpt-4o-mini")
	maxRounds := envInt("AGENT_MAX_ROUNDS", agent.DefaultMaxRounds)
	moderation := envBool("MODERATION_ENABLED", false)
	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))

	mode, err := history.ParseValidationMode(os.Getenv("HISTORY_VALIDATION"))
	if err != nil {
		slog.Error("invalid HISTORY_VALIDATION", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config (only when an AWS-backed component is enabled) ----
	var awsCfg aws.Config
	if storeDriver == "dynamodb" || paramPrefix != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
	}

	// ---- Secrets ----
	var getter paramstore.Getter
	if paramPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		getter = ssmClient
	}
	secretStore := secrets.New(getter, paramPrefix)

	// ---- Transcript store ----
	var store usecase.TranscriptStore
	switch storeDriver {
	case "dynamodb":
		var opts []repository.Option
		if ttlDays > 0 {
			opts = append(opts, repository.WithTTL(time.Duration(ttlDays)*24*time.Hour))
		}
		dynamoStore, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), mustEnv("STATE_TABLE"), opts...)
		if err != nil {
			slog.Error("failed to create transcript store", "err", err)
			os.Exit(1)
		}
		store = dynamoStore
	case "postgres", "sqlite":
		dsn, err := secretStore.Get(ctx, "STORE_DSN", "store-dsn")
		if err != nil && (storeDriver == "postgres" || !errors.Is(err, secrets.ErrMissing)) {
			slog.Error("failed to resolve STORE_DSN", "err", err)
			os.Exit(1)
		}
		db, err := repository.OpenGorm(storeDriver, dsn)
		if err != nil {
			slog.Error("failed to open database", "driver", storeDriver, "err", err)
			os.Exit(1)
		}
		gormStore, err := repository.NewGormStore(ctx, db)
		if err != nil {
			slog.Error("failed to create transcript store", "err", err)
			os.Exit(1)
		}
		defer func() { _ = gormStore.Close() }()
		store = gormStore
	default:
		slog.Error("unsupported STORE_DRIVER", "driver", storeDriver)
		os.Exit(1)
	}

	// ---- Agent ----
	openaiClient, err := openai.NewClient(secretStore.Secret("OPENAI_API_KEY", "open-ai-token"), openai.WithBaseURL(openaiBaseURL))
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	agentCfg := agent.Config{
		Model:         openaiClient,
		ModelName:     openaiModel,
		MaxRounds:     maxRounds,
		GitHubBaseURL: strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
	}
	if moderation {
		agentCfg.Moderator = openaiClient
	}
	githubAgent, err := agent.NewGitHubAgent(agentCfg)
	if err != nil {
		slog.Error("failed to create agent", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	turnService, err := usecase.NewTurnService(store, githubAgent, secretStore.Secret("GITHUB_TOKEN", "github-token"),
		usecase.WithHistoryLimit(historyLimit),
		usecase.WithValidationMode(mode),
	)
	if err != nil {
		slog.Error("failed to create turn service", "err", err)
		os.Exit(1)
	}

	var opts []handler.Option
	if enforceAuth {
		guard, err := usecase.NewBearerGuard(secretStore.Secret("API_BEARER_TOKEN", "api-bearer-token"))
		if err != nil {
			slog.Error("failed to create bearer guard", "err", err)
			os.Exit(1)
		}
		opts = append(opts, handler.WithAuthorizer(guard))
	} else {
		slog.Warn("bearer auth disabled")
	}
	h, err := handler.NewHandler(turnService, opts...)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if httpAddr == "" {
		lambda.Start(h.Handle)
		return
	}
	if err := serveHTTP(httpAddr, h); err != nil {
		slog.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

// serveHTTP runs the handler on a local listener until SIGINT or SIGTERM.
func serveHTTP(addr string, h http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
