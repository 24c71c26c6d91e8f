package handler

import (
	"errors"
	"net/http"

	"batepapo/internal/gateway"
	"batepapo/internal/logger"
	"batepapo/internal/model"
	"batepapo/internal/visibility"
)

// CreateMessage handles POST /messages
// 送信者の登録確認はボディの解析より先に行う
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	sender := r.Header.Get(headerUser)

	if err := h.Gateway.CheckRegistered(r.Context(), sender); err != nil {
		respondSenderError(w, r, sender, err)
		return
	}

	var req gateway.PostRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, "post message", err)
		return
	}

	msg, err := h.Gateway.PostMessage(r.Context(), sender, req)
	if err != nil {
		respondSenderError(w, r, sender, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// respondSenderError 未登録の送信者も422として扱う
func respondSenderError(w http.ResponseWriter, r *http.Request, sender string, err error) {
	if errors.Is(err, model.ErrNotRegistered) {
		logger.Ctx(r.Context()).Info().Str(logger.FieldUser, sender).Msg("post from unknown participant")
		writeError(w, http.StatusUnprocessableEntity, err.Error(), err.Error())
		return
	}
	respondError(w, r, "post message", err)
}

// GetMessages handles GET /messages
// userから見えるメッセージを作成順に返す。limit指定時は末尾N件のみ
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	viewer := r.Header.Get(headerUser)
	limit := visibility.ParseLimit(r.URL.Query().Get("limit"))

	msgs, err := h.Gateway.ReadMessages(r.Context(), viewer, limit)
	if err != nil {
		respondError(w, r, "read messages", err)
		return
	}

	logger.Ctx(r.Context()).Debug().
		Str(logger.FieldUser, viewer).
		Int(logger.FieldCount, len(msgs)).
		Msg("messages returned")

	writeJSON(w, http.StatusOK, msgs)
}
