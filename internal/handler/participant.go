package handler

import (
	"errors"
	"net/http"

	"batepapo/internal/gateway"
	"batepapo/internal/logger"
	"batepapo/internal/model"
)

// Join handles POST /participants
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req gateway.JoinRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, "join", err)
		return
	}

	p, err := h.Gateway.Join(r.Context(), req)
	if err != nil {
		respondError(w, r, "join", err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// ListParticipants handles GET /participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Gateway.ListParticipants(r.Context())
	if err != nil {
		respondError(w, r, "list participants", err)
		return
	}

	writeJSON(w, http.StatusOK, participants)
}

// Heartbeat handles POST /status
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	name := r.Header.Get(headerUser)

	if err := h.Gateway.Heartbeat(r.Context(), name); err != nil {
		if errors.Is(err, model.ErrNotRegistered) {
			logger.Ctx(r.Context()).Debug().Str(logger.FieldUser, name).Msg("heartbeat from unknown participant")
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, "heartbeat", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
