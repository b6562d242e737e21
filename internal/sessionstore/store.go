// Package sessionstore keeps in-flight conversation state in Redis so a
// visitor can resume a booking chat across requests and instances.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"petstay-frontdesk/internal/domain"
)

const (
	keyPrefix  = "frontdesk:session:"
	defaultTTL = 24 * time.Hour
)

// ErrNotFound is returned when no state exists for a session id.
var ErrNotFound = errors.New("sessionstore: session not found")

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL overrides how long idle sessions are retained.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(client *redis.Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("sessionstore: client must not be nil")
	}
	s := &Store{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Save persists the state and refreshes the session TTL.
func (s *Store) Save(ctx context.Context, state domain.ConversationState) error {
	if strings.TrimSpace(state.SessionID) == "" {
		return errors.New("sessionstore: Save: session id is required")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sessionstore: Save marshal: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(state.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: Save: %w", err)
	}
	return nil
}

// Load fetches state for a session, returning ErrNotFound when absent.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.ConversationState, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ConversationState{}, ErrNotFound
	}
	if err != nil {
		return domain.ConversationState{}, fmt.Errorf("sessionstore: Load: %w", err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.ConversationState{}, fmt.Errorf("sessionstore: Load unmarshal: %w", err)
	}
	return state, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessionstore: Delete: %w", err)
	}
	return nil
}
