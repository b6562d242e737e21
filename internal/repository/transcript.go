// Package repository persists chat transcripts and session outcomes in a
// single DynamoDB table, keyed per session.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"petstay-frontdesk/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // transcripts expire after 30 days
)

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// TranscriptWriter is the persistence surface consumed by the chat handler.
type TranscriptWriter interface {
	RecordTurn(ctx context.Context, sessionID, userText, replyText string, outcome domain.Outcome, bookingID, ownerName string) error
}

// Store wraps a DynamoDB table holding chat transcripts.
type Store struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

// RecordTurn writes the completed turn and refreshed session meta in one
// transaction, so the transcript and the turn counter never diverge.
func (s *Store) RecordTurn(ctx context.Context, sessionID, userText, replyText string, outcome domain.Outcome, bookingID, ownerName string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: RecordTurn: session id is required")
	}

	meta, err := s.Meta(ctx, sessionID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	ttl := now.Add(ttlDuration).Unix()
	turn := domain.TranscriptTurn{
		PK:        sessionPK(sessionID),
		SK:        turnSK(now),
		SessionID: sessionID,
		UserText:  userText,
		ReplyText: replyText,
		Outcome:   outcome,
		TTL:       ttl,
	}
	meta.PK = sessionPK(sessionID)
	meta.SK = skMeta
	meta.SessionID = sessionID
	meta.Turns++
	meta.LastActivity = now.Format(time.RFC3339)
	meta.TTL = ttl
	if bookingID != "" {
		meta.BookingID = bookingID
	}
	if ownerName != "" {
		meta.OwnerName = ownerName
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	return nil
}

// History returns up to limit turns for a session in chronological order.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]domain.TranscriptTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: History query: %w", err)
	}

	turns := make([]domain.TranscriptTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: History unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Meta reads the session meta record; a missing record yields a zero value.
func (s *Store) Meta(ctx context.Context, sessionID string) (domain.SessionMeta, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.SessionMeta{}, fmt.Errorf("repository: Meta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.SessionMeta{}, nil
	}
	return itemToMeta(out.Item)
}

func turnItem(turn domain.TranscriptTurn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: turn.PK},
		"SK":        &types.AttributeValueMemberS{Value: turn.SK},
		"sessionId": &types.AttributeValueMemberS{Value: turn.SessionID},
		"userText":  &types.AttributeValueMemberS{Value: turn.UserText},
		"replyText": &types.AttributeValueMemberS{Value: turn.ReplyText},
		"outcome":   &types.AttributeValueMemberS{Value: string(turn.Outcome)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"bookingId":    &types.AttributeValueMemberS{Value: meta.BookingID},
		"ownerName":    &types.AttributeValueMemberS{Value: meta.OwnerName},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.TranscriptTurn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	userText, err := strAttr(item, "userText")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	replyText, _ := strAttr(item, "replyText") // allow empty
	outcome, _ := strAttr(item, "outcome")     // allow empty

	return domain.TranscriptTurn{
		PK:        pk,
		SK:        sk,
		UserText:  userText,
		ReplyText: replyText,
		Outcome:   domain.Outcome(outcome),
	}, nil
}

func itemToMeta(item map[string]types.AttributeValue) (domain.SessionMeta, error) {
	turns, err := intAttr(item, "turns")
	if err != nil {
		return domain.SessionMeta{}, fmt.Errorf("repository: Meta decode turns: %w", err)
	}
	bookingID, _ := strAttr(item, "bookingId")
	ownerName, _ := strAttr(item, "ownerName")
	lastActivity, _ := strAttr(item, "lastActivity")
	sessionID, _ := strAttr(item, "sessionId")

	return domain.SessionMeta{
		SessionID:    sessionID,
		Turns:        turns,
		BookingID:    bookingID,
		OwnerName:    ownerName,
		LastActivity: lastActivity,
	}, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
