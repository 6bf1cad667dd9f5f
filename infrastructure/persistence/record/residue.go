// Package record is the storage form of residues shared by the durable
// snapshot stores. It keeps identities, rotations and bonds, which PDB
// text cannot carry.
package record

import (
	"errors"
	"fmt"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

// Residue is one stored residue.
type Residue struct {
	ID          string    `json:"id" dynamodbav:"id"`
	AminoAcid   string    `json:"aa" dynamodbav:"aa"`
	Position    []float64 `json:"pos" dynamodbav:"pos"`
	Rotation    []float64 `json:"rot" dynamodbav:"rot"`
	ConnectedTo string    `json:"connectedTo,omitempty" dynamodbav:"connectedTo,omitempty"`
}

// FromResidues converts residues to records, in order.
func FromResidues(residues []*entities.Residue) []Residue {
	out := make([]Residue, 0, len(residues))
	for _, res := range residues {
		rot := res.Rotation().Components()
		rec := Residue{
			ID:        res.ID().String(),
			AminoAcid: res.AminoAcid().String(),
			Position:  []float64{res.Position().X(), res.Position().Y(), res.Position().Z()},
			Rotation:  rot[:],
		}
		if to := res.ConnectedTo(); to != nil {
			rec.ConnectedTo = to.String()
		}
		out = append(out, rec)
	}
	return out
}

// ToResidues rebuilds residues. The first invalid record fails the lot.
func ToResidues(records []Residue) ([]*entities.Residue, error) {
	out := make([]*entities.Residue, 0, len(records))
	for i, rec := range records {
		res, err := rec.ToResidue()
		if err != nil {
			return nil, fmt.Errorf("residue %d: %w", i, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// ToResidue rebuilds a single residue. A missing rotation is the identity.
func (rec Residue) ToResidue() (*entities.Residue, error) {
	id, err := valueobjects.ResidueIDFromString(rec.ID)
	if err != nil {
		return nil, err
	}
	aa, err := valueobjects.ParseAminoAcid(rec.AminoAcid)
	if err != nil {
		return nil, err
	}
	if len(rec.Position) != 3 {
		return nil, errors.New("position must have 3 components")
	}
	pos, err := valueobjects.NewPosition3D(rec.Position[0], rec.Position[1], rec.Position[2])
	if err != nil {
		return nil, err
	}
	rot := valueobjects.IdentityRotation()
	if len(rec.Rotation) == 4 {
		if rot, err = valueobjects.NewRotation(rec.Rotation[0], rec.Rotation[1], rec.Rotation[2], rec.Rotation[3]); err != nil {
			return nil, err
		}
	}
	var connectedTo *valueobjects.ResidueID
	if rec.ConnectedTo != "" {
		to, err := valueobjects.ResidueIDFromString(rec.ConnectedTo)
		if err != nil {
			return nil, err
		}
		connectedTo = &to
	}
	return entities.ReconstructResidue(id, aa, pos, rot, connectedTo), nil
}
