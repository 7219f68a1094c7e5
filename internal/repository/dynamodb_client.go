package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

const (
	pkPrefix    = "TRANSCRIPT#"
	skPrefixMsg = "MSG#"
	// sortKeyTime is fixed width so that lexical order of sort keys matches
	// chronological order.
	sortKeyTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client wraps a DynamoDB table holding transcripts.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

var _ TranscriptStore = (*Client)(nil)

type Option func(*Client)

// WithTTL sets an expiry on every appended record. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{
		api:       api,
		tableName: tableName,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// transcriptPK returns the partition key for a session and chat pair. IDs are
// escaped so that no two pairs share a key.
func transcriptPK(sessionID, chatID string) string {
	return pkPrefix + url.PathEscape(sessionID) + "#" + url.PathEscape(chatID)
}

// msgSK returns the sort key for a message written at ts.
func msgSK(ts time.Time, id string) string {
	return skPrefixMsg + ts.UTC().Format(sortKeyTime) + "#" + id
}

// Fetch queries the newest message records of a transcript. The key condition
// pins both session and chat, so records outside the pair are never read.
func (c *Client) Fetch(ctx context.Context, sessionID, chatID string, limit int) ([]domain.MessageRecord, error) {
	if err := validateScope("Fetch", sessionID, chatID); err != nil {
		return nil, err
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: transcriptPK(sessionID, chatID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(effectiveLimit(limit))),
		ConsistentRead:   aws.Bool(true),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, unavailable("Fetch query", err)
	}
	if out == nil {
		return nil, nil
	}

	records := make([]domain.MessageRecord, 0, len(out.Items))
	for _, item := range out.Items {
		records = append(records, itemToRecord(item))
	}
	return records, nil
}

// Append writes a single message record. The condition expression keeps the
// log write-once.
func (c *Client) Append(ctx context.Context, sessionID, chatID, msgType, content string, data map[string]string) error {
	if err := validateScope("Append", sessionID, chatID); err != nil {
		return err
	}

	now := c.now().UTC()
	body := domain.NewMessageBody(msgType, content, data)
	item := recordItem(sessionID, chatID, body, now, c.newID())
	if c.ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(c.ttl).Unix())}
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return unavailable("Append", err)
	}
	return nil
}

func recordItem(sessionID, chatID string, body domain.MessageBody, ts time.Time, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: transcriptPK(sessionID, chatID)},
		"SK":         &types.AttributeValueMemberS{Value: msgSK(ts, id)},
		"session_id": &types.AttributeValueMemberS{Value: sessionID},
		"chat_id":    &types.AttributeValueMemberS{Value: chatID},
		"created_at": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)},
		"message":    &types.AttributeValueMemberM{Value: messageAttr(body)},
	}
}

func messageAttr(body domain.MessageBody) map[string]types.AttributeValue {
	m := map[string]types.AttributeValue{
		"type": &types.AttributeValueMemberS{Value: body.Type},
	}
	if body.Content != nil {
		m["content"] = &types.AttributeValueMemberS{Value: *body.Content}
	}
	if len(body.Data) > 0 {
		data := make(map[string]types.AttributeValue, len(body.Data))
		for k, v := range body.Data {
			data[k] = &types.AttributeValueMemberS{Value: v}
		}
		m["data"] = &types.AttributeValueMemberM{Value: data}
	}
	return m
}

// itemToRecord converts a DynamoDB attribute map to a MessageRecord. Missing
// or mistyped message fields are left absent for the history reconstructor
// to reject.
func itemToRecord(item map[string]types.AttributeValue) domain.MessageRecord {
	rec := domain.MessageRecord{}
	rec.ID, _ = strAttr(item, "SK")
	rec.SessionID, _ = strAttr(item, "session_id")
	rec.ChatID, _ = strAttr(item, "chat_id")
	if raw, err := strAttr(item, "created_at"); err == nil {
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}

	m, ok := item["message"].(*types.AttributeValueMemberM)
	if !ok {
		return rec
	}
	body := &domain.MessageBody{}
	body.Type, _ = strAttr(m.Value, "type")
	if content, err := strAttr(m.Value, "content"); err == nil {
		body.Content = &content
	}
	if data, ok := m.Value["data"].(*types.AttributeValueMemberM); ok && len(data.Value) > 0 {
		body.Data = make(map[string]string, len(data.Value))
		for k := range data.Value {
			if v, err := strAttr(data.Value, k); err == nil {
				body.Data[k] = v
			}
		}
	}
	rec.Message = body
	return rec
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
