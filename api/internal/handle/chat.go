package handle

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"jee-solver/api/internal/solver"
)

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Engine         string `json:"engine"`
	Model          string `json:"model"`
}

type ChatResponse struct {
	Response     string `json:"response"`
	GatewayError string `json:"gateway_error,omitempty"`
}

func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonError(w, "Empty message", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		jsonError(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := h.svc.Chat(ctx, solver.ChatInput{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Engine:         req.Engine,
		Model:          req.Model,
	})
	if err != nil {
		h.serviceError(w, "chat", err)
		return
	}
	out := ChatResponse{Response: res.Response}
	if res.GatewayErr != nil {
		out.GatewayError = res.GatewayErr.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) ClearChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		jsonError(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	if err := h.svc.ClearChat(r.Context(), req.ConversationID); err != nil {
		h.serviceError(w, "clear", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handle) Conversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.serviceError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
