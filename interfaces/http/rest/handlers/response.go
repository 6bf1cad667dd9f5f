package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
	"github.com/yash-217/yash.fun/pkg/utils"
)

// PositionDTO is a point in ångström.
type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ResidueResponse is the wire form of a residue.
type ResidueResponse struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Position    PositionDTO `json:"position"`
	Rotation    [4]float64  `json:"rotation"`
	ConnectedTo *string     `json:"connectedTo"`
}

// GraphResponse is the whole workspace graph.
type GraphResponse struct {
	GraphID    string            `json:"graphId"`
	Generation int64             `json:"generation"`
	Residues   []ResidueResponse `json:"residues"`
	SelectedID *string           `json:"selectedId"`
}

// ImportResponse describes a graph replacement.
type ImportResponse struct {
	StructureID string              `json:"structureId,omitempty"`
	Generation  int64               `json:"generation"`
	Residues    []ResidueResponse   `json:"residues"`
	Dropped     []pdb.DroppedRecord `json:"dropped"`
	Offset      *PositionDTO        `json:"offset,omitempty"`
	Cached      bool                `json:"cached"`
}

// SnapshotResponse is a saved snapshot header.
type SnapshotResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	GraphID      string    `json:"graphId"`
	ResidueCount int       `json:"residueCount"`
	CreatedAt    time.Time `json:"createdAt"`
	ArchiveKey   string    `json:"archiveKey,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *pkgerrors.AppError `json:"error"`
}

func toPositionDTO(p valueobjects.Position) PositionDTO {
	return PositionDTO{X: p.X(), Y: p.Y(), Z: p.Z()}
}

func toResidueResponse(r *entities.Residue) ResidueResponse {
	resp := ResidueResponse{
		ID:       r.ID().String(),
		Type:     r.AminoAcid().String(),
		Position: toPositionDTO(r.Position()),
		Rotation: r.Rotation().Components(),
	}
	if target := r.ConnectedTo(); target != nil {
		s := target.String()
		resp.ConnectedTo = &s
	}
	return resp
}

func toResidueResponses(residues []*entities.Residue) []ResidueResponse {
	out := make([]ResidueResponse, 0, len(residues))
	for _, r := range residues {
		out = append(out, toResidueResponse(r))
	}
	return out
}

func toGraphResponse(v services.GraphView) GraphResponse {
	resp := GraphResponse{
		GraphID:    v.GraphID,
		Generation: v.Generation,
		Residues:   toResidueResponses(v.Residues),
	}
	if v.Selected != nil {
		s := v.Selected.String()
		resp.SelectedID = &s
	}
	return resp
}

func toImportResponse(o *services.ImportOutcome) ImportResponse {
	resp := ImportResponse{
		StructureID: o.StructureID,
		Generation:  o.Generation,
		Residues:    toResidueResponses(o.Residues),
		Dropped:     o.Dropped,
		Cached:      o.Cached,
	}
	if resp.Dropped == nil {
		resp.Dropped = []pdb.DroppedRecord{}
	}
	if o.Offset != nil {
		off := toPositionDTO(*o.Offset)
		resp.Offset = &off
	}
	return resp
}

func toSnapshotResponse(s *entities.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:           s.ID,
		Name:         s.Name,
		GraphID:      s.GraphID,
		ResidueCount: s.ResidueCount(),
		CreatedAt:    s.CreatedAt,
		ArchiveKey:   s.ArchiveKey,
	}
}

// decodeJSON reads a JSON body into v and validates it.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError("request body too large").
				WithDetail("limit", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is empty")
		default:
			return pkgerrors.NewValidationError("invalid request body").WithCause(err)
		}
	}
	return utils.ValidateStruct(v)
}

func parseResidueID(raw string) (valueobjects.ResidueID, error) {
	return valueobjects.ResidueIDFromString(raw)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, pkgerrors.NewValidationError(key + " must be a non-negative integer")
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError maps err onto its HTTP status. Errors that are not
// AppErrors are reported as internal without leaking their text.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		appErr = pkgerrors.NewInternalError("internal error").WithCause(err)
	}
	status := pkgerrors.HTTPStatus(appErr)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Debug("Request rejected", fields...)
	}
	respondJSON(w, logger, status, ErrorResponse{Error: appErr})
}
