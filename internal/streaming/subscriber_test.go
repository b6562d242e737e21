package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"petstay-frontdesk/internal/domain"
	"petstay-frontdesk/internal/signer"
)

type staticCreds struct {
	creds signer.Credentials
	err   error
	calls int
}

func (s *staticCreds) SignerCredentials(context.Context) (signer.Credentials, error) {
	s.calls++
	if s.err != nil {
		return signer.Credentials{}, s.err
	}
	return s.creds, nil
}

type recordingSigner struct {
	calls int
	err   error
}

func (r *recordingSigner) SignURL(endpoint, region string, _ signer.Credentials) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("wss://%s/mqtt?attempt=%d&region=%s", endpoint, r.calls, region), nil
}

// scriptedConn replays its messages, then blocks until Close so the read
// loop only ends when the subscriber tears the connection down.
type scriptedConn struct {
	mu       sync.Mutex
	messages [][]byte
	written  []subscribeFrame
	closed   chan struct{}
	once     sync.Once
}

func newScriptedConn(messages ...[]byte) *scriptedConn {
	return &scriptedConn{messages: messages, closed: make(chan struct{})}
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.mu.Unlock()
		return websocket.TextMessage, msg, nil
	}
	c.mu.Unlock()
	<-c.closed
	return 0, nil, io.ErrClosedPipe
}

func (c *scriptedConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, ok := v.(subscribeFrame)
	if !ok {
		return errors.New("unexpected frame type")
	}
	c.written = append(c.written, frame)
	return nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptedConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSubscriber(t *testing.T, handle Handler, dial Dialer) (*Subscriber, *recordingSigner, *staticCreds) {
	t.Helper()
	creds := &staticCreds{creds: signer.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}}
	urlSigner := &recordingSigner{}
	sub, err := New(
		"example-ats.iot.us-east-1.amazonaws.com", "us-east-1", "petstay/metrics",
		creds, urlSigner, handle, testLogger(),
		WithDialer(dial), WithReconnectDelay(time.Millisecond),
	)
	require.NoError(t, err)
	return sub, urlSigner, creds
}

func TestNewValidation(t *testing.T) {
	creds := &staticCreds{}
	urlSigner := &recordingSigner{}
	handle := func(domain.MetricEvent) {}

	cases := []struct {
		name string
		fn   func() (*Subscriber, error)
	}{
		{"empty endpoint", func() (*Subscriber, error) {
			return New("", "us-east-1", "t", creds, urlSigner, handle, testLogger())
		}},
		{"empty region", func() (*Subscriber, error) {
			return New("host", "", "t", creds, urlSigner, handle, testLogger())
		}},
		{"empty topic", func() (*Subscriber, error) {
			return New("host", "us-east-1", " ", creds, urlSigner, handle, testLogger())
		}},
		{"nil creds", func() (*Subscriber, error) {
			return New("host", "us-east-1", "t", nil, urlSigner, handle, testLogger())
		}},
		{"nil signer", func() (*Subscriber, error) {
			return New("host", "us-east-1", "t", creds, nil, handle, testLogger())
		}},
		{"nil handler", func() (*Subscriber, error) {
			return New("host", "us-east-1", "t", creds, urlSigner, nil, testLogger())
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			require.Error(t, err)
		})
	}
}

func TestRunDeliversEventsAndSubscribes(t *testing.T) {
	events := make(chan domain.MetricEvent, 4)
	conn := newScriptedConn(
		[]byte(`{"metric":"currentGuests","value":12}`),
		[]byte(`{"metric":"bookingUpdate","value":{"BookingID":"B1"}}`),
	)
	dial := func(context.Context, string) (Conn, error) { return conn, nil }

	sub, _, _ := newTestSubscriber(t, func(e domain.MetricEvent) { events <- e }, dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	first := <-events
	require.Equal(t, domain.MetricCurrentGuests, first.Metric)
	require.Equal(t, json.RawMessage(`12`), first.Value)

	second := <-events
	require.Equal(t, domain.MetricBookingUpdate, second.Metric)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Len(t, conn.written, 1)
	require.Equal(t, "subscribe", conn.written[0].Action)
	require.Equal(t, "petstay/metrics", conn.written[0].Topic)
	require.True(t, strings.HasPrefix(conn.written[0].ClientID, clientIDPrefix))
}

func TestRunDropsMalformedEvents(t *testing.T) {
	events := make(chan domain.MetricEvent, 4)
	conn := newScriptedConn(
		[]byte(`not json`),
		[]byte(`{"metric":"bogusMetric","value":1}`),
		[]byte(`{"metric":"availableRooms"}`),
		[]byte(`{"metric":"availableRooms","value":3}`),
	)
	dial := func(context.Context, string) (Conn, error) { return conn, nil }
	sub, _, _ := newTestSubscriber(t, func(e domain.MetricEvent) { events <- e }, dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	got := <-events
	require.Equal(t, domain.MetricAvailableRooms, got.Metric)

	cancel()
	<-done
	require.Empty(t, events)
}

func TestRunResignsURLOnReconnect(t *testing.T) {
	var mu sync.Mutex
	var urls []string
	dial := func(_ context.Context, url string) (Conn, error) {
		mu.Lock()
		urls = append(urls, url)
		attempts := len(urls)
		mu.Unlock()
		if attempts >= 3 {
			// park until cancelled
			return newScriptedConn(), nil
		}
		return nil, errors.New("connection refused")
	}
	sub, urlSigner, creds := newTestSubscriber(t, func(domain.MetricEvent) {}, dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(urls) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEqual(t, urls[0], urls[1], "each attempt signs a fresh url")
	require.GreaterOrEqual(t, urlSigner.calls, 3)
	require.GreaterOrEqual(t, creds.calls, 3)
}

func TestRunSurvivesCredentialFailure(t *testing.T) {
	creds := &staticCreds{err: errors.New("identity pool unavailable")}
	urlSigner := &recordingSigner{}
	sub, err := New(
		"host", "us-east-1", "petstay/metrics",
		creds, urlSigner, func(domain.MetricEvent) {}, testLogger(),
		WithReconnectDelay(time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return creds.calls >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Zero(t, urlSigner.calls, "signing is skipped when credentials fail")
}

func TestTeardownClosesConnection(t *testing.T) {
	conn := newScriptedConn()
	dialed := make(chan struct{}, 1)
	dial := func(context.Context, string) (Conn, error) {
		select {
		case dialed <- struct{}{}:
		default:
		}
		return conn, nil
	}
	sub, _, _ := newTestSubscriber(t, func(domain.MetricEvent) {}, dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	<-dialed
	cancel()
	<-done

	require.True(t, conn.isClosed())
}
