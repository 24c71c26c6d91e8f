package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"batepapo/internal/gateway"
	"batepapo/internal/logger"
	"batepapo/internal/model"
)

// リクエストボディの上限 (1MB)
const maxBodyBytes = 1 << 20

// headerUser carries the caller identity on message and status routes.
const headerUser = "user"

// Gateway is the application surface the HTTP layer translates into.
type Gateway interface {
	Join(ctx context.Context, req gateway.JoinRequest) (model.Participant, error)
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	CheckRegistered(ctx context.Context, name string) error
	PostMessage(ctx context.Context, sender string, req gateway.PostRequest) (model.Message, error)
	ReadMessages(ctx context.Context, viewer string, limit int) ([]model.Message, error)
	Heartbeat(ctx context.Context, name string) error
}

// Handler holds application dependencies
type Handler struct {
	Gateway Gateway
}

// New creates a new Handler with the given dependencies
func New(gw Gateway) *Handler {
	return &Handler{Gateway: gw}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/participants", h.ListParticipants).Methods("GET")
	r.HandleFunc("/participants", h.Join).Methods("POST")

	r.HandleFunc("/messages", h.GetMessages).Methods("GET")
	r.HandleFunc("/messages", h.CreateMessage).Methods("POST")

	r.HandleFunc("/status", h.Heartbeat).Methods("POST")

	r.HandleFunc("/health", h.Health).Methods("GET")

	return r
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decodeBody reads a size-limited JSON body into v. A malformed body is
// reported as a validation failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &model.ValidationError{Reasons: []string{"invalid request body: " + err.Error()}}
	}
	return nil
}

// respondError maps domain errors onto the wire contract. Store failures are
// logged in full and answered with a generic body.
func respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := logger.Ctx(r.Context())

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Info().Strs("reasons", verr.Reasons).Msgf("%s rejected", op)
		writeError(w, http.StatusUnprocessableEntity, "validation failed", verr.Reasons...)
	case errors.Is(err, model.ErrDuplicateName):
		log.Info().Msgf("%s rejected: duplicate name", op)
		writeError(w, http.StatusUnprocessableEntity, err.Error(), err.Error())
	default:
		log.Error().Err(err).Msgf("%s failed", op)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
