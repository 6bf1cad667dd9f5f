package entities

import (
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

// Residue is a single amino acid placed in space, optionally bonded
// forward to one other residue.
type Residue struct {
	id          valueobjects.ResidueID
	aminoAcid   valueobjects.AminoAcid
	position    valueobjects.Position
	rotation    valueobjects.Rotation
	connectedTo *valueobjects.ResidueID
}

// NewResidue creates an unbonded residue with a fresh ID and identity rotation.
func NewResidue(aa valueobjects.AminoAcid, pos valueobjects.Position) *Residue {
	return &Residue{
		id:        valueobjects.NewResidueID(),
		aminoAcid: aa,
		position:  pos,
		rotation:  valueobjects.IdentityRotation(),
	}
}

// ReconstructResidue rebuilds a residue from persisted state, keeping its
// identity and bond.
func ReconstructResidue(
	id valueobjects.ResidueID,
	aa valueobjects.AminoAcid,
	pos valueobjects.Position,
	rot valueobjects.Rotation,
	connectedTo *valueobjects.ResidueID,
) *Residue {
	r := &Residue{
		id:        id,
		aminoAcid: aa,
		position:  pos,
		rotation:  rot,
	}
	if connectedTo != nil && !connectedTo.Equals(id) {
		target := *connectedTo
		r.connectedTo = &target
	}
	return r
}

func (r *Residue) ID() valueobjects.ResidueID {
	return r.id
}

func (r *Residue) AminoAcid() valueobjects.AminoAcid {
	return r.aminoAcid
}

func (r *Residue) Position() valueobjects.Position {
	return r.position
}

func (r *Residue) Rotation() valueobjects.Rotation {
	return r.rotation
}

// ConnectedTo returns the bonded residue's ID, or nil for a terminus.
func (r *Residue) ConnectedTo() *valueobjects.ResidueID {
	if r.connectedTo == nil {
		return nil
	}
	target := *r.connectedTo
	return &target
}

// IsConnectedTo reports whether r bonds forward to id.
func (r *Residue) IsConnectedTo(id valueobjects.ResidueID) bool {
	return r.connectedTo != nil && r.connectedTo.Equals(id)
}

func (r *Residue) SetAminoAcid(aa valueobjects.AminoAcid) {
	r.aminoAcid = aa
}

func (r *Residue) MoveTo(pos valueobjects.Position) {
	r.position = pos
}

func (r *Residue) SetRotation(rot valueobjects.Rotation) {
	r.rotation = rot
}

// ConnectTo bonds r forward to target. Self-bonds are ignored and false is returned.
func (r *Residue) ConnectTo(target valueobjects.ResidueID) bool {
	if target.Equals(r.id) {
		return false
	}
	r.connectedTo = &target
	return true
}

// Disconnect clears the bond and returns the previous target, if any.
func (r *Residue) Disconnect() *valueobjects.ResidueID {
	prev := r.connectedTo
	r.connectedTo = nil
	return prev
}

// Clone returns an independent copy.
func (r *Residue) Clone() *Residue {
	c := *r
	if r.connectedTo != nil {
		target := *r.connectedTo
		c.connectedTo = &target
	}
	return &c
}
