// Package history turns persisted transcript records into the typed,
// chronological turn sequence handed to the agent.
package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

// ErrMalformedRecord is returned when a record lacks its message object, its
// type, or its content, or carries a type the active mode rejects.
var ErrMalformedRecord = errors.New("malformed record")

// ValidationMode controls how unrecognized message types are treated.
type ValidationMode int

const (
	// Lenient maps every type other than "user" to an agent turn.
	Lenient ValidationMode = iota
	// Strict accepts only "user" and "ai".
	Strict
)

func (m ValidationMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseValidationMode parses a configuration value. Empty means Lenient.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("history: unknown validation mode %q", s)
	}
}

// Reconstruct converts newest-first records into oldest-first turns, one
// turn per record. A malformed record fails the whole reconstruction.
func Reconstruct(records []domain.MessageRecord, mode ValidationMode) ([]domain.Turn, error) {
	turns := make([]domain.Turn, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		turn, err := toTurn(records[i], mode)
		if err != nil {
			return nil, fmt.Errorf("history: record %d (id %q): %w", i, records[i].ID, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func toTurn(rec domain.MessageRecord, mode ValidationMode) (domain.Turn, error) {
	msg := rec.Message
	switch {
	case msg == nil:
		return domain.Turn{}, fmt.Errorf("%w: missing message", ErrMalformedRecord)
	case msg.Type == "":
		return domain.Turn{}, fmt.Errorf("%w: missing type", ErrMalformedRecord)
	case msg.Content == nil:
		return domain.Turn{}, fmt.Errorf("%w: missing content", ErrMalformedRecord)
	}

	switch msg.Type {
	case domain.MessageTypeUser:
		return domain.UserTurn(*msg.Content), nil
	case domain.MessageTypeAI:
		return domain.AgentTurn(*msg.Content), nil
	}
	if mode == Strict {
		return domain.Turn{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRecord, msg.Type)
	}
	return domain.AgentTurn(*msg.Content), nil
}
