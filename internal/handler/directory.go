package handler

import (
	"net/http"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/service"
)

// DirectoryHandler serves mention lookups.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(dirSvc *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: dirSvc}
}

// Search handles GET /api/v1/directory
func (h *DirectoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	entries := h.directory.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string][]model.DirectoryEntry{"entries": entries})
}
