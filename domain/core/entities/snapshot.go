package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Snapshot is a named, saved copy of a residue graph. Unlike PDB text it
// keeps residue identities and bonds.
type Snapshot struct {
	ID        string
	Name      string
	GraphID   string
	Residues  []*Residue
	CreatedAt time.Time
	// ArchiveKey locates the exported PDB text, when it was archived.
	ArchiveKey string
}

// NewSnapshot copies residues into a new snapshot.
func NewSnapshot(name, graphID string, residues []*Residue) (*Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.NewValidationError("snapshot name cannot be empty")
	}
	if len(name) > 128 {
		return nil, pkgerrors.NewValidationError("snapshot name too long (max 128 characters)")
	}

	copies := make([]*Residue, 0, len(residues))
	for _, r := range residues {
		copies = append(copies, r.Clone())
	}
	return &Snapshot{
		ID:        uuid.New().String(),
		Name:      name,
		GraphID:   graphID,
		Residues:  copies,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ResidueCount returns the number of saved residues.
func (s *Snapshot) ResidueCount() int {
	return len(s.Residues)
}
