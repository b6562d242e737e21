// Package bookingapi is a focused client for the booking REST API: the
// eventually-consistent status endpoint polled after a pending booking, and
// the admin lifecycle actions.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"petstay-frontdesk/internal/domain"
)

// BookingAction is one of the admin lifecycle transitions.
type BookingAction string

const (
	ActionConfirm  BookingAction = "confirm"
	ActionCancel   BookingAction = "cancel"
	ActionCheckin  BookingAction = "checkin"
	ActionCheckout BookingAction = "checkout"
	ActionRestore  BookingAction = "restore"
)

var knownActions = map[BookingAction]struct{}{
	ActionConfirm:  {},
	ActionCancel:   {},
	ActionCheckin:  {},
	ActionCheckout: {},
	ActionRestore:  {},
}

// HTTPStatusError captures non-2xx upstream responses with status-aware
// context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("bookingapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the booking REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bookingapi: base url must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// statusPayload is the wire shape of the status endpoint.
type statusPayload struct {
	Status string `json:"status"`
	Output struct {
		BookingID string `json:"BookingID"`
	} `json:"output"`
}

// QueryStatus implements usecase.StatusPoller: one observation of the
// booking job identified by handle.
func (c *Client) QueryStatus(ctx context.Context, handle string) (domain.StatusResult, error) {
	if strings.TrimSpace(handle) == "" {
		return domain.StatusResult{}, errors.New("bookingapi: handle must not be empty")
	}
	statusURL := c.baseURL + "/bookingStatus/" + url.PathEscape(handle)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return domain.StatusResult{}, fmt.Errorf("bookingapi: create status request: %w", err)
	}

	raw, err := c.doJSONRequest(req, statusURL)
	if err != nil {
		return domain.StatusResult{}, fmt.Errorf("bookingapi: status request failed: %w", err)
	}

	var payload statusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.StatusResult{}, fmt.Errorf("bookingapi: decode status response: %w", err)
	}
	return domain.StatusResult{
		Status:    payload.Status,
		BookingID: payload.Output.BookingID,
	}, nil
}

type actionRequest struct {
	BookingID string `json:"bookingId"`
}

// Do performs one admin booking action.
func (c *Client) Do(ctx context.Context, action BookingAction, bookingID string) error {
	if _, ok := knownActions[action]; !ok {
		return fmt.Errorf("bookingapi: unknown action %q", action)
	}
	if strings.TrimSpace(bookingID) == "" {
		return errors.New("bookingapi: booking id must not be empty")
	}

	body, err := json.Marshal(actionRequest{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("bookingapi: marshal action request: %w", err)
	}
	actionURL := c.baseURL + "/" + string(action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, actionURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bookingapi: create action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.doJSONRequest(req, actionURL); err != nil {
		return fmt.Errorf("bookingapi: %s failed: %w", action, err)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, reqURL string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        reqURL,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
