package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// CatalogHandler serves stored snapshots and runs searches inside the
// request. It keeps no state between requests.
type CatalogHandler struct {
	catalog *services.Catalog
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *services.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ImportSnapshotRequest is the body of POST /snapshots on the catalog.
type ImportSnapshotRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	StructureID string `json:"structureId" validate:"required,max=64"`
}

// SnapshotDetailResponse is a snapshot with its residues.
type SnapshotDetailResponse struct {
	SnapshotResponse
	Residues []ResidueResponse `json:"residues"`
}

// ImportSnapshot handles POST /snapshots with a structure id, or with PDB
// text as the body and the name in ?name=.
func (h *CatalogHandler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") == ContentTypePDB {
		text, err := readStructureText(r)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		snapshot, err := h.catalog.ImportText(r.Context(), r.URL.Query().Get("name"), text)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		w.Header().Set("Location", r.URL.Path+"/"+snapshot.ID)
		respondJSON(w, h.logger, http.StatusCreated, toSnapshotResponse(snapshot))
		return
	}

	var req ImportSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	snapshot, err := h.catalog.ImportStructure(r.Context(), req.Name, req.StructureID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+snapshot.ID)
	respondJSON(w, h.logger, http.StatusCreated, toSnapshotResponse(snapshot))
}

// ListSnapshots handles GET /snapshots
func (h *CatalogHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultSnapshotLimit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	list, err := h.catalog.List(r.Context(), limit)
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

// GetSnapshot handles GET /snapshots/{snapshotID}
func (h *CatalogHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.catalog.Get(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, SnapshotDetailResponse{
		SnapshotResponse: toSnapshotResponse(snapshot),
		Residues:         toResidueResponses(snapshot.Residues),
	})
}

// ExportSnapshot handles GET /snapshots/{snapshotID}/export
func (h *CatalogHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.Export(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", ContentTypePDB)
	w.Header().Set("X-Structure-Valid", strconv.FormatBool(res.IsValid))
	w.Header().Set("X-Structure-Warnings", strconv.Itoa(len(res.Warnings)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, res.Text); err != nil {
		h.logger.Warn("Failed to write snapshot export", zap.Error(err))
	}
}

// SearchSnapshot handles POST /snapshots/{snapshotID}/search. The search
// runs to completion inside the request.
func (h *CatalogHandler) SearchSnapshot(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.catalog.SearchSnapshot(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, outcome)
}

// DeleteSnapshot handles DELETE /snapshots/{snapshotID}
func (h *CatalogHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "snapshotID")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunSearch handles POST /searches with PDB text as the body and answers
// with the finished matches.
func (h *CatalogHandler) RunSearch(w http.ResponseWriter, r *http.Request) {
	text, err := readStructureText(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	outcome, err := h.catalog.SearchText(r.Context(), text)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, outcome)
}

// readStructureText reads a non-empty PDB body.
func readStructureText(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", pkgerrors.NewValidationError("structure text too large").
				WithDetail("limit", tooLarge.Limit)
		}
		return "", pkgerrors.NewValidationError("unreadable request body").WithCause(err)
	}
	text := string(body)
	if strings.TrimSpace(text) == "" {
		return "", pkgerrors.NewValidationError("structure text is empty")
	}
	return text, nil
}
