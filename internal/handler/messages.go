package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/carebridge/shared-care-platform/internal/middleware"
	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/service"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	conv          *ConversationHandler
	logger        *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	msgSvc *service.MessageService,
	convSvc *service.ConversationService,
	conv *ConversationHandler,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:      msgSvc,
		conversations: convSvc,
		conv:          conv,
		logger:        log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages — the watermark
// poll: only messages with ids past `after`.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	afterID := int64(0)
	if after := r.URL.Query().Get("after"); after != "" {
		parsed, err := strconv.ParseInt(after, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid after parameter")
			return
		}
		afterID = parsed
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	msgs, err := h.messages.Poll(ctx, id, afterID, limit)
	if err != nil {
		h.logger.Error("failed to poll messages")
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, &model.PollResult{Messages: msgs})
}

// Send handles POST /api/v1/conversations/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sender := service.Sender{
		ID:    middleware.GetUserID(ctx),
		Name:  middleware.GetUserName(ctx),
		Class: middleware.GetRole(ctx),
	}

	res, err := h.messages.Send(ctx, id, sender, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to send message")
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}
