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

// DraftHandler handles draft, summary, and note endpoints. All routes are
// therapist-only.
type DraftHandler struct {
	drafts *service.DraftService
	conv   *ConversationHandler
	logger *logger.Logger
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(draftSvc *service.DraftService, conv *ConversationHandler, log *logger.Logger) *DraftHandler {
	return &DraftHandler{
		drafts: draftSvc,
		conv:   conv,
		logger: log,
	}
}

// Generate handles POST /api/v1/conversations/{id}/drafts
func (h *DraftHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	res, err := h.drafts.Generate(ctx, id, middleware.GetUserID(ctx))
	if err != nil {
		h.logger.Error("draft generation failed")
		writeError(w, http.StatusBadGateway, "draft generation failed")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Send handles POST /api/v1/conversations/{id}/drafts/{draftID}/send
func (h *DraftHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}
	draftID := chi.URLParam(r, "draftID")

	var req struct {
		Content string `json:"content"`
	}
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
		Class: model.SenderTherapist,
	}

	res, err := h.drafts.Send(ctx, id, draftID, sender, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		h.logger.Error("draft send failed")
		writeError(w, http.StatusInternalServerError, "failed to send draft")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Discard handles POST /api/v1/conversations/{id}/drafts/{draftID}/discard
func (h *DraftHandler) Discard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}
	draftID := chi.URLParam(r, "draftID")

	if err := h.drafts.Discard(ctx, id, draftID); err != nil {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summarize handles POST /api/v1/conversations/{id}/summary
func (h *DraftHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	res, err := h.drafts.Summarize(ctx, id)
	if err != nil {
		h.logger.Error("summary generation failed")
		writeError(w, http.StatusBadGateway, "summary generation failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SaveNote handles POST /api/v1/conversations/{id}/notes
func (h *DraftHandler) SaveNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.drafts.SaveNote(ctx, id, middleware.GetUserID(ctx), req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Notes handles GET /api/v1/conversations/{id}/notes
func (h *DraftHandler) Notes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conv.resolveID(w, r)
	if !ok {
		return
	}

	notes := h.drafts.Notes(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string][]model.Note{"notes": notes})
}
