package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"petstay-frontdesk/internal/domain"
	"petstay-frontdesk/internal/sessionstore"
	"petstay-frontdesk/internal/usecase"
)

const welcomeText = "Hi"

type createSessionRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []domain.Message `json:"messages"`
	Outcome   domain.Outcome   `json:"outcome,omitempty"`
	BookingID string           `json:"bookingId,omitempty"`
}

// createSession opens a fresh conversation and runs a greeting turn so the
// widget has something to render immediately.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		// A missing or empty body just means "use the default greeting".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = welcomeText
	}

	state := usecase.NewSessionState()
	result, err := h.conversations.SendText(r.Context(), &state, text)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	if err := h.sessions.Save(r.Context(), state); err != nil {
		h.logger.Error("save session failed", "session_id", state.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "unable to persist session")
		return
	}
	h.recordTurn(r, state.SessionID, text, result)

	writeJSON(w, http.StatusCreated, chatResponse{
		SessionID: state.SessionID,
		Messages:  result.Messages,
		Outcome:   result.Outcome,
		BookingID: result.BookingID,
	})
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// postMessage runs one chat turn. If the turn resolves to a pending booking
// job, the job is polled inline before responding.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	state, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.conversations.SendText(r.Context(), &state, req.Text)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	result = h.resolveIfPending(r, &state, result)

	if err := h.sessions.Save(r.Context(), state); err != nil {
		h.logger.Error("save session failed", "session_id", state.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "unable to persist session")
		return
	}
	h.recordTurn(r, state.SessionID, req.Text, result)

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: state.SessionID,
		Messages:  result.Messages,
		Outcome:   result.Outcome,
		BookingID: result.BookingID,
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
		h.logger.Error("delete session failed", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "unable to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type photoUploadRequest struct {
	Species     string `json:"species"`
	ContentType string `json:"contentType"`
}

type photoUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// requestPhotoUpload hands the client a short-lived presigned PUT slot.
func (h *Handler) requestPhotoUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.loadSession(w, r); !ok {
		return
	}

	var req photoUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.photos.NewUploadTicket(r.Context(), req.Species, req.ContentType)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photoUploadResponse{
		UploadURL: ticket.UploadURL,
		Key:       ticket.Key,
	})
}

type photoConfirmRequest struct {
	Key string `json:"key"`
}

// confirmPhotoUpload folds a completed upload back into the conversation so
// the dialog engine learns the photo key.
func (h *Handler) confirmPhotoUpload(w http.ResponseWriter, r *http.Request) {
	state, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req photoConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	result, err := h.conversations.NotifyUpload(r.Context(), &state, req.Key)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	if err := h.sessions.Save(r.Context(), state); err != nil {
		h.logger.Error("save session failed", "session_id", state.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "unable to persist session")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: state.SessionID,
		Messages:  result.Messages,
		Outcome:   result.Outcome,
		BookingID: result.BookingID,
	})
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (domain.ConversationState, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	state, err := h.sessions.Load(r.Context(), sessionID)
	if errors.Is(err, sessionstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return domain.ConversationState{}, false
	}
	if err != nil {
		h.logger.Error("load session failed", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "unable to load session")
		return domain.ConversationState{}, false
	}
	return state, true
}

// resolveIfPending polls a pending booking job and rewrites the turn result:
// success swaps in the durable id, exhaustion appends the still-processing
// notice and leaves the session pending.
func (h *Handler) resolveIfPending(r *http.Request, state *domain.ConversationState, result usecase.TurnResult) usecase.TurnResult {
	if result.PendingHandle == "" {
		return result
	}
	bookingID, done, err := h.conversations.ResolvePending(r.Context(), state, result.PendingHandle)
	if err != nil {
		// Context cancellation; the client already went away.
		return result
	}
	if done {
		result.Outcome = domain.OutcomeSuccess
		result.BookingID = bookingID
		return result
	}
	result.Messages = append(result.Messages, usecase.StillProcessingMessage())
	return result
}

func (h *Handler) recordTurn(r *http.Request, sessionID, userText string, result usecase.TurnResult) {
	if h.transcripts == nil {
		return
	}
	reply := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		if m.Text != "" {
			reply = append(reply, m.Text)
		}
	}
	err := h.transcripts.RecordTurn(r.Context(), sessionID, userText, strings.Join(reply, "\n"), result.Outcome, result.BookingID, result.OwnerName)
	if err != nil {
		// Transcripts are best effort; the chat flow never fails on them.
		h.logger.Warn("record transcript failed", "session_id", sessionID, "err", err)
	}
}
