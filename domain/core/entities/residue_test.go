package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

func TestNewResidue(t *testing.T) {
	pos := valueobjects.Vec(1, 2, 3)
	r := NewResidue(valueobjects.Glycine, pos)

	assert.False(t, r.ID().IsZero())
	assert.Equal(t, valueobjects.Glycine, r.AminoAcid())
	assert.True(t, r.Position().Equals(pos))
	assert.True(t, r.Rotation().IsIdentity())
	assert.Nil(t, r.ConnectedTo())
}

func TestResidue_ConnectTo(t *testing.T) {
	a := NewResidue(valueobjects.Alanine, valueobjects.Origin())
	b := NewResidue(valueobjects.Serine, valueobjects.Origin())

	assert.False(t, a.ConnectTo(a.ID()), "self bond must be ignored")
	assert.Nil(t, a.ConnectedTo())

	require.True(t, a.ConnectTo(b.ID()))
	assert.True(t, a.IsConnectedTo(b.ID()))

	prev := a.Disconnect()
	require.NotNil(t, prev)
	assert.True(t, prev.Equals(b.ID()))
	assert.Nil(t, a.ConnectedTo())
}

func TestResidue_CloneIsIndependent(t *testing.T) {
	a := NewResidue(valueobjects.Alanine, valueobjects.Vec(1, 1, 1))
	b := NewResidue(valueobjects.Serine, valueobjects.Origin())
	a.ConnectTo(b.ID())

	c := a.Clone()
	c.MoveTo(valueobjects.Vec(9, 9, 9))
	c.Disconnect()

	assert.True(t, a.Position().Equals(valueobjects.Vec(1, 1, 1)))
	assert.True(t, a.IsConnectedTo(b.ID()))
	assert.True(t, c.ID().Equals(a.ID()))
}

func TestReconstructResidue_DropsSelfBond(t *testing.T) {
	id := valueobjects.NewResidueID()
	r := ReconstructResidue(id, valueobjects.Lysine, valueobjects.Origin(), valueobjects.IdentityRotation(), &id)
	assert.Nil(t, r.ConnectedTo())
}
