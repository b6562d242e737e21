// Package streaming maintains the live metrics subscription that feeds the
// occupancy dashboard. The subscription connects over a presigned websocket
// URL and renews the URL on every reconnect, since signatures are
// short-lived.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"petstay-frontdesk/internal/domain"
	"petstay-frontdesk/internal/signer"
)

const (
	defaultReconnectDelay = 10 * time.Second
	clientIDPrefix        = "frontdesk-dash-"
)

// URLSigner produces a presigned websocket URL for the metrics endpoint.
type URLSigner interface {
	SignURL(endpoint, region string, creds signer.Credentials) (string, error)
}

// CredentialSource supplies fresh signing credentials per connection attempt.
type CredentialSource interface {
	SignerCredentials(ctx context.Context) (signer.Credentials, error)
}

// Conn is the subset of a websocket connection the subscriber uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a websocket connection to a presigned URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

func gorillaDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Handler receives each decoded metric event.
type Handler func(domain.MetricEvent)

type subscribeFrame struct {
	Action   string `json:"action"`
	Topic    string `json:"topic"`
	ClientID string `json:"clientId"`
}

// Subscriber owns at most one live connection at a time. Run blocks until
// the context is cancelled, reconnecting with a fixed delay after any
// connection failure.
type Subscriber struct {
	endpoint string
	region   string
	topic    string
	creds    CredentialSource
	signer   URLSigner
	handle   Handler
	logger   *slog.Logger

	dial           Dialer
	reconnectDelay time.Duration
	newClientID    func() string

	mu   sync.Mutex
	conn Conn
}

type Option func(*Subscriber)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Subscriber) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithReconnectDelay overrides the pause between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

func New(endpoint, region, topic string, creds CredentialSource, urlSigner URLSigner, handle Handler, logger *slog.Logger, opts ...Option) (*Subscriber, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("streaming: endpoint must not be empty")
	}
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("streaming: region must not be empty")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("streaming: topic must not be empty")
	}
	if creds == nil {
		return nil, errors.New("streaming: credential source must not be nil")
	}
	if urlSigner == nil {
		return nil, errors.New("streaming: url signer must not be nil")
	}
	if handle == nil {
		return nil, errors.New("streaming: handler must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Subscriber{
		endpoint:       endpoint,
		region:         region,
		topic:          topic,
		creds:          creds,
		signer:         urlSigner,
		handle:         handle,
		logger:         logger,
		dial:           gorillaDialer,
		reconnectDelay: defaultReconnectDelay,
		newClientID:    func() string { return clientIDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run connects and consumes events until ctx is cancelled. Each failed
// session is torn down before the next attempt, so only one connection is
// ever live.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("metrics stream disconnected", "error", err, "retry_in", s.reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	creds, err := s.creds.SignerCredentials(ctx)
	if err != nil {
		return fmt.Errorf("streaming: fetch credentials: %w", err)
	}
	url, err := s.signer.SignURL(s.endpoint, s.region, creds)
	if err != nil {
		return fmt.Errorf("streaming: sign url: %w", err)
	}

	conn, err := s.dial(ctx, url)
	if err != nil {
		return fmt.Errorf("streaming: dial: %w", err)
	}
	s.setConn(conn)
	defer s.teardown()

	frame := subscribeFrame{Action: "subscribe", Topic: s.topic, ClientID: s.newClientID()}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("streaming: subscribe: %w", err)
	}
	s.logger.Info("metrics stream connected", "topic", s.topic)

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.teardown()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("streaming: read: %w", err)
		}
		event, err := decodeEvent(payload)
		if err != nil {
			s.logger.Warn("dropping malformed metric event", "error", err)
			continue
		}
		s.handle(event)
	}
}

func (s *Subscriber) setConn(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *Subscriber) teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
