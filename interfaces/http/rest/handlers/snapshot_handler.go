package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
)

const defaultSnapshotLimit = 50

// SnapshotHandler saves and restores named copies of the graph.
type SnapshotHandler struct {
	workspace *services.Workspace
	logger    *zap.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(ws *services.Workspace, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{workspace: ws, logger: logger}
}

// SaveSnapshotRequest is the body of POST /snapshots.
type SaveSnapshotRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// ListSnapshotsResponse wraps the snapshot list.
type ListSnapshotsResponse struct {
	Snapshots []SnapshotResponse `json:"snapshots"`
}

// SaveSnapshot handles POST /snapshots
func (h *SnapshotHandler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SaveSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	snapshot, err := h.workspace.SaveSnapshot(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+snapshot.ID)
	respondJSON(w, h.logger, http.StatusCreated, toSnapshotResponse(snapshot))
}

// ListSnapshots handles GET /snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultSnapshotLimit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	list, err := h.workspace.ListSnapshots(r.Context(), limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	resp := ListSnapshotsResponse{Snapshots: make([]SnapshotResponse, 0, len(list))}
	for _, s := range list {
		resp.Snapshots = append(resp.Snapshots, toSnapshotResponse(s))
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// RestoreSnapshot handles POST /snapshots/{snapshotID}/restore
func (h *SnapshotHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.workspace.RestoreSnapshot(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toImportResponse(outcome))
}

// DeleteSnapshot handles DELETE /snapshots/{snapshotID}
func (h *SnapshotHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.DeleteSnapshot(r.Context(), chi.URLParam(r, "snapshotID")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
