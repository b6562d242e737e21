// Package handler exposes the front desk over HTTP: guest chat sessions,
// photo uploads, booking status, and the staff dashboard.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"petstay-frontdesk/internal/dashboard"
	"petstay-frontdesk/internal/domain"
	"petstay-frontdesk/internal/http/middleware"
	"petstay-frontdesk/internal/integrations/bookingapi"
	"petstay-frontdesk/internal/integrations/photostore"
	"petstay-frontdesk/internal/usecase"
)

// Conversations drives chat turns. Satisfied by usecase.Coordinator.
type Conversations interface {
	SendText(ctx context.Context, state *domain.ConversationState, text string) (usecase.TurnResult, error)
	NotifyUpload(ctx context.Context, state *domain.ConversationState, key string) (usecase.TurnResult, error)
	ResolvePending(ctx context.Context, state *domain.ConversationState, handle string) (string, bool, error)
}

// SessionStore persists conversation state between requests.
type SessionStore interface {
	Save(ctx context.Context, state domain.ConversationState) error
	Load(ctx context.Context, sessionID string) (domain.ConversationState, error)
	Delete(ctx context.Context, sessionID string) error
}

// TranscriptWriter records completed turns for later review.
type TranscriptWriter interface {
	RecordTurn(ctx context.Context, sessionID, userText, replyText string, outcome domain.Outcome, bookingID, ownerName string) error
}

// PhotoTickets mints presigned upload slots for pet photos.
type PhotoTickets interface {
	NewUploadTicket(ctx context.Context, species, contentType string) (photostore.Ticket, error)
}

// BookingService serves status reads and staff lifecycle actions.
type BookingService interface {
	QueryStatus(ctx context.Context, handle string) (domain.StatusResult, error)
	Do(ctx context.Context, action bookingapi.BookingAction, bookingID string) error
}

// StatsSource feeds the staff dashboard.
type StatsSource interface {
	Snapshot() dashboard.Snapshot
}

type Config struct {
	Conversations Conversations
	Sessions      SessionStore
	Transcripts   TranscriptWriter
	Photos        PhotoTickets
	Bookings      BookingService
	Stats         StatsSource
	StaffAuth     func(http.Handler) http.Handler
	Metrics       http.Handler
	Logger        *slog.Logger
}

type Handler struct {
	conversations Conversations
	sessions      SessionStore
	transcripts   TranscriptWriter
	photos        PhotoTickets
	bookings      BookingService
	stats         StatsSource
	staffAuth     func(http.Handler) http.Handler
	metrics       http.Handler
	logger        *slog.Logger
}

func New(cfg Config) (*Handler, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("handler: conversations must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("handler: session store must not be nil")
	}
	if cfg.Photos == nil {
		return nil, errors.New("handler: photo store must not be nil")
	}
	if cfg.Bookings == nil {
		return nil, errors.New("handler: booking service must not be nil")
	}
	if cfg.Stats == nil {
		return nil, errors.New("handler: stats source must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	staffAuth := cfg.StaffAuth
	if staffAuth == nil {
		// Fail closed on admin routes when auth was never wired.
		staffAuth = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusUnauthorized, "staff auth not configured")
			})
		}
	}
	return &Handler{
		conversations: cfg.Conversations,
		sessions:      cfg.Sessions,
		transcripts:   cfg.Transcripts,
		photos:        cfg.Photos,
		bookings:      cfg.Bookings,
		stats:         cfg.Stats,
		staffAuth:     staffAuth,
		metrics:       cfg.Metrics,
		logger:        logger,
	}, nil
}

// Router assembles the public and staff route trees.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/chat/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/messages", h.postMessage)
			r.Delete("/", h.deleteSession)
			r.Post("/photos", h.requestPhotoUpload)
			r.Post("/photos/confirm", h.confirmPhotoUpload)
		})
	})

	r.Get("/bookings/{handle}/status", h.bookingStatus)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.staffAuth)
		r.Get("/dashboard", h.adminDashboard)
		r.Post("/bookings/{bookingID}/{action}", h.adminBookingAction)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUsecaseError maps domain error codes onto HTTP statuses. Upstream
// failures surface as 502 so clients can tell them from our own faults.
func writeUsecaseError(w http.ResponseWriter, err error) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			writeError(w, http.StatusBadRequest, ucErr.Reason)
		case usecase.ErrorTransport, usecase.ErrorCredential, usecase.ErrorMalformedResponse:
			writeError(w, http.StatusBadGateway, ucErr.Reason)
		default:
			writeError(w, http.StatusInternalServerError, ucErr.Reason)
		}
		return
	}
	var statusErr *bookingapi.HTTPStatusError
	if errors.As(err, &statusErr) {
		writeError(w, http.StatusBadGateway, "booking service error")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
