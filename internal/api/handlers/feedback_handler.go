package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/iserve-be/internal/services"
	"github.com/rs/zerolog/log"
)

// FeedbackHandler relays feedback from the app to the support mailbox.
type FeedbackHandler struct {
	service services.FeedbackServiceProvider
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(service services.FeedbackServiceProvider) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Send handles a feedback submission. Responses are plain text.
func (h *FeedbackHandler) Send(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Subject  string `json:"subject"`
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.SendFeedback(r.Context(), payload.Subject, payload.Feedback)
	switch {
	case err == nil:
		log.Info().Str("subject", payload.Subject).Msg("Feedback email sent")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Thanks for sharing your feedback with us.."))
	case errors.Is(err, services.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrMailerDisabled):
		http.Error(w, "Feedback is currently unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Failed to send feedback email")
		http.Error(w, "Feedback submission unsuccessful! Try again!", http.StatusInternalServerError)
	}
}
