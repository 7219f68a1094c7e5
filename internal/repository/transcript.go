package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

// DefaultHistoryLimit bounds Fetch when the caller passes a non-positive limit.
const DefaultHistoryLimit = 10

// ErrStoreUnavailable marks failures of the underlying record store: the store
// was unreachable or rejected the query or insert. Callers decide whether the
// failure is fatal; the adapters never retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// TranscriptStore is the append-only message log scoped by session and chat.
type TranscriptStore interface {
	// Fetch returns at most limit records for the session and chat pair,
	// newest first.
	Fetch(ctx context.Context, sessionID, chatID string, limit int) ([]domain.MessageRecord, error)
	// Append inserts one record holding {type, content, data?}.
	Append(ctx context.Context, sessionID, chatID, msgType, content string, data map[string]string) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("repository: %s: %w: %w", op, ErrStoreUnavailable, err)
}

func validateScope(op, sessionID, chatID string) error {
	if sessionID == "" || chatID == "" {
		return fmt.Errorf("repository: %s: session ID and chat ID are required", op)
	}
	return nil
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
