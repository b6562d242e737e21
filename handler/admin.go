package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"petstay-frontdesk/internal/integrations/bookingapi"
)

type bookingStatusResponse struct {
	Status    string `json:"status"`
	BookingID string `json:"bookingId,omitempty"`
}

// bookingStatus is a single status observation, for clients that keep
// polling after the inline window expired.
func (h *Handler) bookingStatus(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if strings.TrimSpace(handle) == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	res, err := h.bookings.QueryStatus(r.Context(), handle)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingStatusResponse{
		Status:    res.Status,
		BookingID: res.BookingID,
	})
}

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

var actionsByName = map[string]bookingapi.BookingAction{
	"confirm":  bookingapi.ActionConfirm,
	"cancel":   bookingapi.ActionCancel,
	"checkin":  bookingapi.ActionCheckin,
	"checkout": bookingapi.ActionCheckout,
	"restore":  bookingapi.ActionRestore,
}

// adminBookingAction applies one staff lifecycle transition to a booking.
func (h *Handler) adminBookingAction(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	actionName := chi.URLParam(r, "action")

	action, ok := actionsByName[actionName]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if strings.TrimSpace(bookingID) == "" {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	if err := h.bookings.Do(r.Context(), action, bookingID); err != nil {
		h.logger.Error("booking action failed", "booking_id", bookingID, "action", actionName, "err", err)
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"bookingId": bookingID,
		"action":    actionName,
		"result":    "applied",
	})
}
