// Package handler provides HTTP handlers for the gateway API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge/shared-care-platform/internal/middleware"
	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/service"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
	alerts        *service.AlertService
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(
	convSvc *service.ConversationService,
	msgSvc *service.MessageService,
	alertSvc *service.AlertService,
	log *logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: convSvc,
		messages:      msgSvc,
		alerts:        alertSvc,
		logger:        log,
	}
}

// resolveID maps the "current" pseudo-id to the caller's own conversation
// and enforces that subjects only reach their own thread.
func (h *ConversationHandler) resolveID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "current" {
		conv, err := h.conversations.GetBySubject(ctx, middleware.GetUserID(ctx))
		if err != nil {
			writeError(w, http.StatusNotFound, "conversation not found")
			return "", false
		}
		return conv.ID, true
	}

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}

	if middleware.GetRole(ctx) == model.SenderSubject {
		conv, err := h.conversations.Get(ctx, id)
		if err != nil || conv.SubjectID != middleware.GetUserID(ctx) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return "", false
		}
	}
	return id, true
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateGroupID(req.GroupID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Create(ctx, &req)
	if err != nil {
		h.logger.Error("failed to create conversation")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	group := r.URL.Query().Get("group")
	if group == "" {
		group = middleware.GetGroupID(ctx)
	}
	if err := middleware.ValidateGroupID(group); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.conversations.List(ctx, group, middleware.GetUserID(ctx))
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Get handles GET /api/v1/conversations/{id} — the full load: conversation
// plus the complete message sequence.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	res, err := h.messages.Load(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation")
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Check handles GET /api/v1/conversations/{id}/check
func (h *ConversationHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	res, err := h.conversations.Check(ctx, id, middleware.GetUserID(ctx))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to check updates")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// MarkRead handles POST /api/v1/conversations/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	if err := h.conversations.MarkRead(ctx, id, middleware.GetUserID(ctx)); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleAI handles POST /api/v1/conversations/{id}/ai
func (h *ConversationHandler) ToggleAI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	enabled, err := h.conversations.ToggleAI(ctx, id, req.Enabled)
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// SetRisk handles POST /api/v1/conversations/{id}/risk
func (h *ConversationHandler) SetRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	var req struct {
		Risk model.RiskLevel `json:"risk"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level, err := h.conversations.SetRisk(ctx, id, req.Risk)
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]model.RiskLevel{"risk": level})
}

// SetStatus handles POST /api/v1/conversations/{id}/status
func (h *ConversationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.conversations.SetStatus(ctx, id, req.Status)
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]model.Status{"status": status})
}

// Alerts handles GET /api/v1/conversations/{id}/alerts
func (h *ConversationHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	unackedOnly := r.URL.Query().Get("unacked") == "true"
	alerts := h.alerts.List(r.Context(), id, unackedOnly)

	writeJSON(w, http.StatusOK, map[string][]model.Alert{"alerts": alerts})
}

// AcknowledgeAlert handles POST /api/v1/conversations/{id}/alerts/{alertID}/ack
func (h *ConversationHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.resolveID(w, r)
	if !ok {
		return
	}

	alertID := chi.URLParam(r, "alertID")
	if !h.alerts.Acknowledge(ctx, id, alertID, middleware.GetUserID(ctx)) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeActionError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
