package domain

// Outcome is the terminal result recorded for a conversation session.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
)

// Session attribute keys exchanged with the dialog engine and its
// fulfillment backend. The names are part of the wire contract.
const (
	AttrBookingID        = "BookingID"
	AttrPendingBookingID = "PendingBookingID"
	AttrOwnerName        = "OwnerName"
	AttrLastPhotoKey     = "LastUploadedPetPhotoKey"
	AttrPhotoKeyMirror   = "petPhotoKey"
)

// SlotPetPhotoKey is the advisory slot carrying the uploaded photo's object
// key. The dialog engine is authoritative and may discard it.
const SlotPetPhotoKey = "petPhotoKey"

// SlotValue is the structured value of a named slot.
type SlotValue struct {
	InterpretedValue string `json:"interpretedValue,omitempty"`
	OriginalValue    string `json:"originalValue,omitempty"`
}

// Resolved returns the best available reading of the slot value.
func (v SlotValue) Resolved() string {
	if v.InterpretedValue != "" {
		return v.InterpretedValue
	}
	return v.OriginalValue
}

// ConversationState is the complete mutable state of one chat session. It is
// owned by exactly one session and mutated only by the turn coordinator.
type ConversationState struct {
	SessionID   string               `json:"sessionId"`
	IntentName  string               `json:"intentName,omitempty"`
	Slots       map[string]SlotValue `json:"slots,omitempty"`
	PetPhotoKey string               `json:"petPhotoKey,omitempty"`
	Outcome     Outcome              `json:"outcome,omitempty"`
}

// WithSlot returns a copy of slots with name set to value. The receiver map
// is never mutated so callers can hold the old snapshot.
func WithSlot(slots map[string]SlotValue, name, interpretedValue string) map[string]SlotValue {
	next := make(map[string]SlotValue, len(slots)+1)
	for k, v := range slots {
		next[k] = v
	}
	next[name] = SlotValue{InterpretedValue: interpretedValue}
	return next
}

// TurnState is the dialog engine's reading of the current intent.
type TurnState string

const (
	TurnStateInProgress TurnState = "InProgress"
	TurnStateFulfilled  TurnState = "Fulfilled"
	TurnStateFailed     TurnState = "Failed"
	TurnStateWaiting    TurnState = "Waiting"
)

// TurnRequest is one outbound exchange with the dialog transport.
type TurnRequest struct {
	SessionID         string
	Text              string
	IntentName        string               // non-empty only with an intent override
	SlotOverride      map[string]SlotValue // nil means reuse engine-side state
	SessionAttributes map[string]string
}

// TurnResponse is the normalized dialog engine reply. Messages are decoded
// into the tagged union once, at the transport boundary.
type TurnResponse struct {
	IntentName        string
	Slots             map[string]SlotValue
	TurnState         TurnState
	SessionAttributes map[string]string
	Messages          []Message
}

// CarriesIntent reports whether the response included an intent snapshot
// that should overwrite local state.
func (r TurnResponse) CarriesIntent() bool {
	return r.IntentName != "" || r.Slots != nil
}

// StatusResult is one observation of an asynchronous booking job.
type StatusResult struct {
	Status    string `json:"status"`
	BookingID string `json:"bookingId,omitempty"`
}

// StatusSucceeded is the only terminal marker the status poller accepts.
const StatusSucceeded = "SUCCEEDED"
