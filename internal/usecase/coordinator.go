package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"petstay-frontdesk/internal/domain"
)

const defaultIntentName = "PetStayBooking"

// User-visible fallback copy. Technical detail stays in the logs.
const (
	genericFailureText      = "Sorry, something went wrong creating your booking. Please try again in a moment."
	connectivityFailureText = "We hit a connection hiccup. Please try again in a moment."
	stillProcessingText     = "Your booking is still processing. You'll receive an email with details shortly."

	photoUploadedText = "photo uploaded"
)

// DialogTransport sends one turn to the dialog engine and returns its
// normalized response.
type DialogTransport interface {
	SendTurn(ctx context.Context, req domain.TurnRequest) (domain.TurnResponse, error)
}

// StatusPoller queries an asynchronous booking job by its handle.
type StatusPoller interface {
	QueryStatus(ctx context.Context, handle string) (domain.StatusResult, error)
}

// RetryPolicy bounds the pending-booking polling loop. A zero-delay policy
// is valid and used by tests.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the web client's historical constants.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 8, Delay: 1500 * time.Millisecond}
}

// TurnResult tells the caller what to do after a turn: render Messages,
// redirect on BookingID, or poll PendingHandle.
type TurnResult struct {
	Messages      []domain.Message
	Outcome       domain.Outcome
	BookingID     string
	PendingHandle string
	OwnerName     string
}

// Coordinator drives request/response cycles against the dialog transport
// and owns every mutation of ConversationState. Turns are strictly
// sequential per session; callers must not issue two concurrent sends
// against the same state.
type Coordinator struct {
	transport DialogTransport
	poller    StatusPoller
	retry     RetryPolicy
	logger    *slog.Logger
}

func NewCoordinator(transport DialogTransport, poller StatusPoller, retry RetryPolicy, logger *slog.Logger) (*Coordinator, error) {
	if transport == nil {
		return nil, errors.New("usecase: dialog transport must not be nil")
	}
	if poller == nil {
		return nil, errors.New("usecase: status poller must not be nil")
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		transport: transport,
		poller:    poller,
		retry:     retry,
		logger:    logger,
	}, nil
}

// NewSessionState creates the state for a fresh browser session. Session
// ids are created once and never reused.
func NewSessionState() domain.ConversationState {
	return domain.ConversationState{SessionID: newSessionID()}
}

var newSessionID = func() string {
	return "web-" + uuid.NewString()
}

// StillProcessingMessage is the non-alarming copy shown when polling
// exhausts its attempts without resolution.
func StillProcessingMessage() domain.Message {
	return domain.TextMessage(stillProcessingText)
}

// SendText runs one user-initiated turn.
func (c *Coordinator) SendText(ctx context.Context, state *domain.ConversationState, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, newError(ErrorInvalidInput, "empty_text", nil)
	}
	return c.send(ctx, state, text, nil, nil)
}

// MergeUploadedPhoto folds a completed side-channel upload into the state:
// the object key rides along as a session attribute on every later turn,
// and as an advisory local slot override. Applying the same key twice is a
// no-op.
func (c *Coordinator) MergeUploadedPhoto(state *domain.ConversationState, key string) {
	state.PetPhotoKey = key
	state.Slots = domain.WithSlot(state.Slots, domain.SlotPetPhotoKey, key)
}

// NotifyUpload merges the uploaded photo reference and runs the
// system-initiated turn that tells the dialog engine about it.
func (c *Coordinator) NotifyUpload(ctx context.Context, state *domain.ConversationState, key string) (TurnResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return TurnResult{}, newError(ErrorInvalidInput, "empty_photo_key", nil)
	}
	c.MergeUploadedPhoto(state, key)
	extra := map[string]string{
		domain.AttrLastPhotoKey: key,
		// Mirror under the slot name in case the fulfillment side checks
		// either spelling.
		domain.AttrPhotoKeyMirror: key,
	}
	return c.send(ctx, state, photoUploadedText, state.Slots, extra)
}

func (c *Coordinator) send(ctx context.Context, state *domain.ConversationState, text string, overrideSlots map[string]domain.SlotValue, extraAttrs map[string]string) (TurnResult, error) {
	// A fresh turn always gets a chance to report its own result rather
	// than being shadowed by a stale prior outcome.
	if state.Outcome == domain.OutcomeSuccess || state.Outcome == domain.OutcomeFailed {
		state.Outcome = domain.OutcomeNone
	}

	attrs := make(map[string]string, len(extraAttrs)+1)
	for k, v := range extraAttrs {
		attrs[k] = v
	}
	if state.PetPhotoKey != "" && attrs[domain.AttrLastPhotoKey] == "" {
		attrs[domain.AttrLastPhotoKey] = state.PetPhotoKey
	}

	req := domain.TurnRequest{
		SessionID:         state.SessionID,
		Text:              text,
		SessionAttributes: attrs,
	}
	switch {
	case overrideSlots != nil:
		// Immediately after an upload the engine has not seen the new slot
		// yet; force the known intent if we never learned one.
		req.IntentName = state.IntentName
		if req.IntentName == "" {
			req.IntentName = defaultIntentName
		}
		req.SlotOverride = overrideSlots
	case state.IntentName != "" && state.Slots != nil:
		req.IntentName = state.IntentName
		req.SlotOverride = state.Slots
	}

	resp, err := c.transport.SendTurn(ctx, req)
	if err != nil {
		c.logger.Error("dialog turn failed",
			"session_id", state.SessionID,
			"err", err,
		)
		if state.Outcome == domain.OutcomeSuccess || state.Outcome == domain.OutcomePending {
			// Never contradict an already-confirmed result.
			return TurnResult{Outcome: state.Outcome}, nil
		}
		state.Outcome = domain.OutcomeFailed
		return TurnResult{
			Messages: []domain.Message{domain.TextMessage(connectivityFailureText)},
			Outcome:  domain.OutcomeFailed,
		}, nil
	}

	return c.applyResponse(state, resp), nil
}

// applyResponse is the single mutation path for turn responses.
func (c *Coordinator) applyResponse(state *domain.ConversationState, resp domain.TurnResponse) TurnResult {
	if resp.IntentName != "" {
		state.IntentName = resp.IntentName
	}
	if resp.Slots != nil {
		state.Slots = resp.Slots
	}

	attrs := resp.SessionAttributes
	if resp.TurnState == domain.TurnStateFulfilled {
		switch {
		case attrs[domain.AttrBookingID] != "":
			state.Outcome = domain.OutcomeSuccess
		case attrs[domain.AttrPendingBookingID] != "":
			state.Outcome = domain.OutcomePending
		}
	}

	messages := append([]domain.Message(nil), resp.Messages...)

	// Success and pending take precedence over failed once observed, even
	// within the same response. A generic failure is synthesized only when
	// the engine itself stayed silent.
	if resp.TurnState == domain.TurnStateFailed &&
		state.Outcome != domain.OutcomeSuccess && state.Outcome != domain.OutcomePending {
		if len(resp.Messages) == 0 {
			messages = append(messages, domain.TextMessage(genericFailureText))
		}
		state.Outcome = domain.OutcomeFailed
	}
	if resp.TurnState == domain.TurnStateFailed &&
		(state.Outcome == domain.OutcomeSuccess || state.Outcome == domain.OutcomePending) &&
		len(resp.Messages) > 0 {
		c.logger.Warn("failed turn carried messages after terminal outcome",
			"session_id", state.SessionID,
			"outcome", string(state.Outcome),
		)
	}

	result := TurnResult{Messages: messages, Outcome: state.Outcome}
	if resp.TurnState == domain.TurnStateFulfilled {
		result.BookingID = attrs[domain.AttrBookingID]
		result.PendingHandle = attrs[domain.AttrPendingBookingID]
		result.OwnerName = attrs[domain.AttrOwnerName]
		if result.BookingID == "" && result.PendingHandle == "" {
			c.logger.Warn("turn fulfilled without booking reference",
				"session_id", state.SessionID,
			)
		}
	}
	return result
}

// ResolvePending polls the booking job until it yields a durable id or
// attempts are exhausted. Transport and HTTP-level failures are soft: they
// are logged and the loop continues. Exhaustion is not an error; the caller
// shows StillProcessingMessage and the state stays pending. The only error
// returned is context cancellation.
func (c *Coordinator) ResolvePending(ctx context.Context, state *domain.ConversationState, handle string) (string, bool, error) {
	if handle == "" {
		return "", false, nil
	}
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		res, err := c.poller.QueryStatus(ctx, handle)
		if err != nil {
			c.logger.Warn("booking status poll failed",
				"session_id", state.SessionID,
				"handle", handle,
				"attempt", attempt,
				"max_attempts", c.retry.MaxAttempts,
				"err", err,
			)
		} else if res.Status == domain.StatusSucceeded && res.BookingID != "" {
			state.Outcome = domain.OutcomeSuccess
			return res.BookingID, true, nil
		}
		if attempt < c.retry.MaxAttempts {
			if err := sleepCtx(ctx, c.retry.Delay); err != nil {
				return "", false, err
			}
		}
	}
	c.logger.Info("booking still processing after polling",
		"session_id", state.SessionID,
		"handle", handle,
	)
	return "", false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
