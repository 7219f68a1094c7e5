package domain

import "time"

// Message types persisted in the transcript.
const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"
)

// MessageRecord is a single persisted transcript entry. Records are written
// once and never mutated. Message is nil when the stored record carries no
// message object.
type MessageRecord struct {
	ID        string
	SessionID string
	ChatID    string
	Message   *MessageBody
	CreatedAt time.Time
}

// MessageBody is the nested message object of a record. An empty Type or a
// nil Content means the field was absent in storage.
type MessageBody struct {
	Type    string            `json:"type,omitempty"`
	Content *string           `json:"content,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// NewMessageBody builds a message object. Data is dropped when empty.
func NewMessageBody(msgType, content string, data map[string]string) MessageBody {
	body := MessageBody{Type: msgType, Content: &content}
	if len(data) > 0 {
		body.Data = data
	}
	return body
}

// Role identifies the author of a conversation turn.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAgent
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Turn is one reconstructed conversation turn handed to the agent.
type Turn struct {
	Role    Role
	Content string
}

// UserTurn returns a user-authored prompt turn.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AgentTurn returns an agent-authored response turn.
func AgentTurn(content string) Turn { return Turn{Role: RoleAgent, Content: content} }
