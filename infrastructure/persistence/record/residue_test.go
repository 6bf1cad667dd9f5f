package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

func TestResidues_KeepIdentityAndBonds(t *testing.T) {
	a := entities.NewResidue(valueobjects.Proline, valueobjects.Vec(1, 2, 3))
	b := entities.NewResidue(valueobjects.Serine, valueobjects.Vec(4.8, 2, 3))
	rot, err := valueobjects.NewRotation(1, 1, 0, 0)
	require.NoError(t, err)
	b.SetRotation(rot)
	b.ConnectTo(a.ID())

	recs := FromResidues([]*entities.Residue{a, b})
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].ConnectedTo)
	assert.Equal(t, a.ID().String(), recs[1].ConnectedTo)

	out, err := ToResidues(recs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].ID().Equals(a.ID()))
	assert.True(t, out[1].IsConnectedTo(a.ID()))
	assert.True(t, out[0].Position().Equals(valueobjects.Vec(1, 2, 3)))
	assert.InDelta(t, rot.W(), out[1].Rotation().W(), 1e-12)
	assert.InDelta(t, rot.X(), out[1].Rotation().X(), 1e-12)
}

func TestToResidue_Invalid(t *testing.T) {
	valid := FromResidues([]*entities.Residue{
		entities.NewResidue(valueobjects.Alanine, valueobjects.Vec(0, 0, 0)),
	})[0]

	tests := []struct {
		name   string
		mutate func(r *Residue)
	}{
		{"bad id", func(r *Residue) { r.ID = "not-a-uuid" }},
		{"unknown amino acid", func(r *Residue) { r.AminoAcid = "ZZZ" }},
		{"short position", func(r *Residue) { r.Position = []float64{1, 2} }},
		{"zero rotation", func(r *Residue) { r.Rotation = []float64{0, 0, 0, 0} }},
		{"bad bond target", func(r *Residue) { r.ConnectedTo = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			rec.Position = append([]float64(nil), valid.Position...)
			tt.mutate(&rec)
			_, err := rec.ToResidue()
			assert.Error(t, err)
		})
	}

	t.Run("missing rotation is identity", func(t *testing.T) {
		rec := valid
		rec.Rotation = nil
		res, err := rec.ToResidue()
		require.NoError(t, err)
		assert.True(t, res.Rotation().IsIdentity())
	})
}
