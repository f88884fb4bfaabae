package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"exportmap/pkg/contact"
	"exportmap/pkg/logging"
	"exportmap/pkg/store"
)

// Submitter accepts contact-form submissions.
type Submitter interface {
	Submit(ctx context.Context, sub contact.Submission) (*store.ContactRecord, error)
}

// ContactHandler serves the contact form endpoint.
type ContactHandler struct {
	svc     Submitter
	limiter *ipLimiter
}

// NewContactHandler allows perMinute submissions per client address.
func NewContactHandler(svc Submitter, perMinute float64, burst int) *ContactHandler {
	return &ContactHandler{svc: svc, limiter: newIPLimiter(perMinute, burst)}
}

// ContactResponse acknowledges a delivered submission.
type ContactResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler returns the rate-limited POST handler.
func (h *ContactHandler) Handler() http.HandlerFunc {
	return h.limiter.wrap(h.handleSubmit)
}

// Sweep forgets idle rate-limit buckets.
func (h *ContactHandler) Sweep(maxIdle time.Duration) int {
	return h.limiter.sweep(maxIdle)
}

func (h *ContactHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub contact.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.Submit(r.Context(), sub)
	var verrs contact.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "please correct the highlighted fields", Fields: verrs})
	case errors.Is(err, contact.ErrDelivery):
		writeError(w, http.StatusBadGateway, "we could not send your message right now, please try again")
	case err != nil:
		slog.Error("Contact submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		logging.LogEvent(&logging.Event{Type: "contact", Title: rec.Reason, Summary: rec.ID})
		writeJSON(w, http.StatusCreated, ContactResponse{ID: rec.ID, CreatedAt: rec.CreatedAt})
	}
}
