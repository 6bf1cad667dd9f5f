package valueobjects

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

func TestNewResidueID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewResidueID()
		require.False(t, id.IsZero())
		require.False(t, seen[id.String()], "duplicate id generated")
		seen[id.String()] = true
	}
}

func TestResidueIDFromString(t *testing.T) {
	id := NewResidueID()

	parsed, err := ResidueIDFromString(id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equals(id))

	_, err = ResidueIDFromString("")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = ResidueIDFromString("not-a-uuid")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestResidueID_JSON(t *testing.T) {
	id := NewResidueID()
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ResidueID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equals(id))
}

func TestParseAminoAcid(t *testing.T) {
	tests := []struct {
		in      string
		want    AminoAcid
		wantErr bool
	}{
		{in: "ALA", want: Alanine},
		{in: "gly", want: Glycine},
		{in: " Trp ", want: Tryptophan},
		{in: "MSE", wantErr: true},
		{in: "HOH", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAminoAcid(tt.in)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveResidueName(t *testing.T) {
	tests := []struct {
		in     string
		want   AminoAcid
		wantOK bool
	}{
		{in: "LYS", want: Lysine, wantOK: true},
		{in: "MSE", want: Methionine, wantOK: true},
		{in: "HSD", want: Histidine, wantOK: true},
		{in: "CYX", want: Cysteine, wantOK: true},
		{in: "HOH", wantOK: false},
		{in: "DA", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ResolveResidueName(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAminoAcid_OneLetter(t *testing.T) {
	assert.Len(t, AllAminoAcids(), 20)
	assert.Equal(t, byte('W'), Tryptophan.OneLetter())
	assert.Equal(t, byte('X'), AminoAcid("UNK").OneLetter())
}

func TestNewRotation(t *testing.T) {
	r, err := NewRotation(2, 0, 0, 0)
	require.NoError(t, err)
	assert.True(t, r.IsIdentity())

	r, err = NewRotation(1, 1, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2/2, r.W(), 1e-12)
	assert.False(t, r.IsIdentity())

	_, err = NewRotation(0, 0, 0, 0)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewRotation(math.NaN(), 0, 0, 0)
	assert.True(t, pkgerrors.IsValidation(err))

	assert.True(t, IdentityRotation().IsIdentity())
}
