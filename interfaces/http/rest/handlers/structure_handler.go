package handlers

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
)

// ContentTypePDB is served for exported structure text.
const ContentTypePDB = "chemical/x-pdb"

// StructureHandler serves PDB export, import and remote loading.
type StructureHandler struct {
	workspace *services.Workspace
	logger    *zap.Logger
}

// NewStructureHandler creates a new structure handler
func NewStructureHandler(ws *services.Workspace, logger *zap.Logger) *StructureHandler {
	return &StructureHandler{workspace: ws, logger: logger}
}

// LoadRequest is the body of POST /structure/load.
type LoadRequest struct {
	StructureID string `json:"structureId" validate:"required,max=64"`
}

// ExportResponse is the JSON form of an export.
type ExportResponse struct {
	Text     string   `json:"text"`
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
}

// Export handles GET /structure/export. The text is always returned;
// validity travels in X-Structure-Valid, or in the body with ?format=json.
func (h *StructureHandler) Export(w http.ResponseWriter, r *http.Request) {
	res := h.workspace.Export()

	if r.URL.Query().Get("format") == "json" {
		warnings := res.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		respondJSON(w, h.logger, http.StatusOK, ExportResponse{
			Text:     res.Text,
			Valid:    res.IsValid,
			Warnings: warnings,
		})
		return
	}

	w.Header().Set("Content-Type", ContentTypePDB)
	w.Header().Set("X-Structure-Valid", strconv.FormatBool(res.IsValid))
	w.Header().Set("X-Structure-Warnings", strconv.Itoa(len(res.Warnings)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, res.Text); err != nil {
		h.logger.Warn("Failed to write structure export", zap.Error(err))
	}
}

// Import handles POST /structure/import with PDB text as the body.
func (h *StructureHandler) Import(w http.ResponseWriter, r *http.Request) {
	text, err := readStructureText(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	outcome, err := h.workspace.ImportText(r.Context(), text)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toImportResponse(outcome))
}

// Load handles POST /structure/load
func (h *StructureHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	outcome, err := h.workspace.LoadStructure(r.Context(), req.StructureID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toImportResponse(outcome))
}
