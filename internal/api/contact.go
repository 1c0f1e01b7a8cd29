package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/galerija/internal/contact"
	"github.com/erazemk/galerija/internal/metrics"
)

// ContactHandler accepts contact form submissions.
type ContactHandler struct {
	Sender contact.Sender
}

// Send handles POST /api/contact.
func (h *ContactHandler) Send(w http.ResponseWriter, r *http.Request) {
	var msg contact.Message
	if err := decodeJSON(r, &msg); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := msg.Validate(); err != nil {
		metrics.ContactMessages.WithLabelValues("invalid").Inc()
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Sender.Send(r.Context(), msg); err != nil {
		metrics.ContactMessages.WithLabelValues("error").Inc()
		slog.Error("failed to deliver contact message", "email", msg.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	metrics.ContactMessages.WithLabelValues("ok").Inc()
	jsonResponse(w, http.StatusOK, map[string]string{"message": "message sent"})
}
