package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// MsgGenericFailure is the reply when a turn could not be processed.
const MsgGenericFailure = "Sorry, I had a problem processing your message. Please try again."

const maxBodyBytes = 64 << 10

// MessageHandler is the engine as seen by the HTTP layer.
type MessageHandler interface {
	Handle(ctx context.Context, req Request) (Reply, error)
}

// Handler exposes the engine and the question desk over HTTP.
type Handler struct {
	engine MessageHandler
	desk   *QuestionDesk
	logger *logging.Logger
}

func NewHandler(engine MessageHandler, desk *QuestionDesk, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, desk: desk, logger: logger}
}

type generateRequest struct {
	Sender          string `json:"sender"`
	Message         string `json:"message"`
	ConnectedNumber string `json:"numeroConectado"`
}

type generateResponse struct {
	Response  string         `json:"response"`
	AudioPath *string        `json:"audio_path"`
	Slots     []booking.Slot `json:"slots"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type questionResponse struct {
	Answer string `json:"answer"`
}

// Generate handles POST /generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Error("failed to decode generate request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Sender = strings.TrimSpace(req.Sender)
	if req.Sender == "" || strings.TrimSpace(req.Message) == "" {
		h.writeError(w, http.StatusBadRequest, "sender and message are required")
		return
	}

	ctx := r.Context()
	if req.ConnectedNumber != "" {
		ctx = tenancy.WithConnectedNumber(ctx, req.ConnectedNumber)
	}
	reply, err := h.engine.Handle(ctx, Request{UserID: req.Sender, Text: req.Message, Token: bearerToken(r)})
	if errors.Is(err, userconfig.ErrUnauthorized) {
		h.writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if err != nil {
		h.logger.Error("failed to process message", "user_id", req.Sender, "error", err)
		reply = Reply{Text: MsgGenericFailure}
	}

	resp := generateResponse{Response: reply.Text, Slots: reply.Slots}
	if resp.Slots == nil {
		resp.Slots = []booking.Slot{}
	}
	if reply.AudioRef != "" {
		ref := reply.AudioRef
		resp.AudioPath = &ref
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Question handles POST /api/question.
func (h *Handler) Question(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	ctx := tenancy.WithToken(r.Context(), bearerToken(r))
	h.writeJSON(w, http.StatusOK, questionResponse{Answer: h.desk.Answer(ctx, "", req.Question)})
}

// bearerToken prefers the token placed in the context by the auth
// middleware and falls back to the raw header.
func bearerToken(r *http.Request) string {
	if token, ok := tenancy.TokenFromContext(r.Context()); ok {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
