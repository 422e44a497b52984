// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/middleware"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/service"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

const unavailableMessage = "The calendar is temporarily unavailable. Please try again."

// ChatHandler serves the stateless chat endpoint: the client sends the
// context it got back from the previous turn.
type ChatHandler struct {
	assistant *service.AssistantService
	logger    *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(assistant *service.AssistantService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		logger:    log,
	}
}

// Chat handles POST /chat and POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conversationID := r.Header.Get(middleware.ConversationHeader)
	log := h.logger.WithContext(middleware.GetCorrelationID(ctx), conversationID)

	resp, err := h.assistant.HandleTurn(ctx, conversationID, req.Message, req.Context)
	if err != nil {
		prior := req.Context
		if prior == nil {
			prior = &model.ConversationContext{}
		}
		if errors.Is(err, service.ErrStoreUnavailable) {
			log.Warn("chat turn failed, store unavailable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, model.ChatErrorResponse{
				Error:   unavailableMessage,
				Context: prior,
			})
			return
		}
		log.Error("chat turn failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.ChatErrorResponse{
			Error:   "internal error",
			Context: prior,
		})
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		Response: resp.Reply,
		Context:  resp.Context,
	})
}
