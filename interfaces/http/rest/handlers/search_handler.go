package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
)

// SearchHandler starts, reports and cancels background similarity searches.
type SearchHandler struct {
	workspace *services.Workspace
	logger    *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(ws *services.Workspace, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{workspace: ws, logger: logger}
}

// StartSearchResponse acknowledges a submitted search.
type StartSearchResponse struct {
	ID    string               `json:"id"`
	State services.SearchState `json:"state"`
}

// StartSearch handles POST /searches
func (h *SearchHandler) StartSearch(w http.ResponseWriter, r *http.Request) {
	id, err := h.workspace.StartSearch()
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	view, err := h.workspace.Search(id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+id)
	respondJSON(w, h.logger, http.StatusAccepted, StartSearchResponse{ID: id, State: view.State})
}

// GetSearch handles GET /searches/{jobID}
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	view, err := h.workspace.Search(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, view)
}

// CancelSearch handles DELETE /searches/{jobID}
func (h *SearchHandler) CancelSearch(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.CancelSearch(chi.URLParam(r, "jobID")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
