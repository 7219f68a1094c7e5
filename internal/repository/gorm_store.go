package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

// messageRow mirrors the hosted `messages` table: one row per transcript
// entry with the message object kept as JSON.
type messageRow struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	SessionID string         `gorm:"size:191;not null;index:idx_messages_session_chat,priority:1"`
	ChatID    string         `gorm:"size:191;not null;index:idx_messages_session_chat,priority:2"`
	Message   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index:idx_messages_session_chat,priority:3"`
}

func (messageRow) TableName() string {
	return "messages"
}

// wireMessage is decoded leniently; fields that do not fit are reported as
// absent rather than failing the whole fetch.
type wireMessage struct {
	Type    string         `json:"type"`
	Content *string        `json:"content"`
	Data    map[string]any `json:"data"`
}

func (r messageRow) toRecord() domain.MessageRecord {
	rec := domain.MessageRecord{
		ID:        strconv.FormatInt(r.ID, 10),
		SessionID: r.SessionID,
		ChatID:    r.ChatID,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Message) == 0 {
		return rec
	}
	var wire *wireMessage
	if err := json.Unmarshal(r.Message, &wire); err != nil || wire == nil {
		return rec
	}
	body := &domain.MessageBody{Type: wire.Type, Content: wire.Content}
	if len(wire.Data) > 0 {
		body.Data = make(map[string]string, len(wire.Data))
		for k, v := range wire.Data {
			if s, ok := v.(string); ok {
				body.Data[k] = s
				continue
			}
			body.Data[k] = fmt.Sprint(v)
		}
	}
	rec.Message = body
	return rec
}

// GormStore keeps transcripts in a SQL database through gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ TranscriptStore = (*GormStore)(nil)

// NewGormStore wraps an open database handle and migrates the messages table.
// The handle's lifecycle stays with the caller.
func NewGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	store := &GormStore{db: db, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&messageRow{}); err != nil {
		return fmt.Errorf("repository: migrate messages: %w", err)
	}
	return nil
}

// Fetch returns the newest records of a transcript, newest first.
func (s *GormStore) Fetch(ctx context.Context, sessionID, chatID string, limit int) ([]domain.MessageRecord, error) {
	if err := validateScope("Fetch", sessionID, chatID); err != nil {
		return nil, err
	}

	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND chat_id = ?", sessionID, chatID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(effectiveLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("Fetch", err)
	}

	out := make([]domain.MessageRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// Append inserts one message row.
func (s *GormStore) Append(ctx context.Context, sessionID, chatID, msgType, content string, data map[string]string) error {
	if err := validateScope("Append", sessionID, chatID); err != nil {
		return err
	}

	encoded, err := json.Marshal(domain.NewMessageBody(msgType, content, data))
	if err != nil {
		return fmt.Errorf("repository: Append marshal message: %w", err)
	}
	row := messageRow{
		SessionID: sessionID,
		ChatID:    chatID,
		Message:   datatypes.JSON(encoded),
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return unavailable("Append", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("repository: get sql db: %w", err)
	}
	return sqlDB.Close()
}
