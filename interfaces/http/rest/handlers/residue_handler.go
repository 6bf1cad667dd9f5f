package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
	"github.com/yash-217/yash.fun/domain/core/aggregates"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

// ResidueHandler serves residue editing and selection.
type ResidueHandler struct {
	workspace *services.Workspace
	logger    *zap.Logger
}

// NewResidueHandler creates a new residue handler
func NewResidueHandler(ws *services.Workspace, logger *zap.Logger) *ResidueHandler {
	return &ResidueHandler{workspace: ws, logger: logger}
}

// AddResidueRequest is the body of POST /residues.
type AddResidueRequest struct {
	Type string   `json:"type" validate:"required,len=3"`
	X    *float64 `json:"x" validate:"required"`
	Y    *float64 `json:"y" validate:"required"`
	Z    *float64 `json:"z" validate:"required"`
}

// UpdateResidueRequest is the body of PATCH /residues/{residueID}. Absent
// coordinates keep their current value.
type UpdateResidueRequest struct {
	Type     *string    `json:"type,omitempty" validate:"omitempty,len=3"`
	X        *float64   `json:"x,omitempty"`
	Y        *float64   `json:"y,omitempty"`
	Z        *float64   `json:"z,omitempty"`
	Rotation *[]float64 `json:"rotation,omitempty" validate:"omitempty,len=4"`
}

// ConnectRequest is the body of POST /residues/{residueID}/connect.
type ConnectRequest struct {
	TargetID string `json:"targetId" validate:"required,uuid"`
}

// DropRequest is the body of POST /residues/{residueID}/drop.
type DropRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
	Z *float64 `json:"z" validate:"required"`
}

// DropResponse reports where a dragged residue came to rest.
type DropResponse struct {
	Residue    ResidueResponse `json:"residue"`
	Bonded     bool            `json:"bonded"`
	NeighborID *string         `json:"neighborId,omitempty"`
	Distance   float64         `json:"distance,omitempty"`
	Generation int64           `json:"generation"`
}

// SelectRequest is the body of PUT /selection. A null id clears it.
type SelectRequest struct {
	ResidueID *string `json:"residueId"`
}

// ListResidues handles GET /residues
func (h *ResidueHandler) ListResidues(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, toGraphResponse(h.workspace.View()))
}

// AddResidue handles POST /residues
func (h *ResidueHandler) AddResidue(w http.ResponseWriter, r *http.Request) {
	var req AddResidueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	aa, err := valueobjects.ParseAminoAcid(req.Type)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	pos, err := valueobjects.NewPosition3D(*req.X, *req.Y, *req.Z)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	residue, err := h.workspace.Add(r.Context(), aa, pos)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+residue.ID().String())
	respondJSON(w, h.logger, http.StatusCreated, toResidueResponse(residue))
}

// GetResidue handles GET /residues/{residueID}
func (h *ResidueHandler) GetResidue(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	residue, err := h.workspace.Residue(id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toResidueResponse(residue))
}

// UpdateResidue handles PATCH /residues/{residueID}
func (h *ResidueHandler) UpdateResidue(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	var req UpdateResidueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var patch aggregates.ResiduePatch
	if req.Type != nil {
		aa, err := valueobjects.ParseAminoAcid(*req.Type)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		patch.AminoAcid = &aa
	}
	// absent coordinates are filled in from the current position under the
	// workspace lock
	patch.X, patch.Y, patch.Z = req.X, req.Y, req.Z
	if req.Rotation != nil {
		q := *req.Rotation
		rot, err := valueobjects.NewRotation(q[0], q[1], q[2], q[3])
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		patch.Rotation = &rot
	}

	residue, err := h.workspace.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toResidueResponse(residue))
}

// DeleteResidue handles DELETE /residues/{residueID}
func (h *ResidueHandler) DeleteResidue(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.workspace.Remove(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Connect handles POST /residues/{residueID}/connect
func (h *ResidueHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	var req ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	target, err := parseResidueID(req.TargetID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.workspace.Connect(r.Context(), id, target); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondResidue(w, r, id)
}

// Disconnect handles DELETE /residues/{residueID}/connect
func (h *ResidueHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.workspace.Disconnect(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondResidue(w, r, id)
}

// Drop handles POST /residues/{residueID}/drop
func (h *ResidueHandler) Drop(w http.ResponseWriter, r *http.Request) {
	id, err := parseResidueID(chi.URLParam(r, "residueID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	var req DropRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	pos, err := valueobjects.NewPosition3D(*req.X, *req.Y, *req.Z)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.workspace.Drop(r.Context(), id, pos)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	residue, err := h.workspace.Residue(id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	resp := DropResponse{
		Residue:    toResidueResponse(residue),
		Bonded:     result.Bonded,
		Distance:   result.Distance,
		Generation: h.workspace.Generation(),
	}
	if result.NeighborID != nil {
		s := result.NeighborID.String()
		resp.NeighborID = &s
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// Select handles PUT /selection
func (h *ResidueHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	var id *valueobjects.ResidueID
	if req.ResidueID != nil {
		parsed, err := parseResidueID(*req.ResidueID)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		id = &parsed
	}
	if err := h.workspace.Select(id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toGraphResponse(h.workspace.View()))
}

// Clear handles DELETE /graph
func (h *ResidueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.Clear(r.Context()); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResidueHandler) respondResidue(w http.ResponseWriter, r *http.Request, id valueobjects.ResidueID) {
	residue, err := h.workspace.Residue(id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toResidueResponse(residue))
}
