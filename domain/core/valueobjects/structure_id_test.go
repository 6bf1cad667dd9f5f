package valueobjects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidStructureID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1ABC", true},
		{"AF-P69905-F1", true},
		{"AF-P69905-F1-model_v3.pdb", true},
		{"1a3n-assembly1.cif.gz_A", true},
		{"abc", false},
		{"-1ABC", false},
		{".1ABC", false},
		{"1ABC/../x", false},
		{"1 AB", false},
		{strings.Repeat("A", 64), true},
		{strings.Repeat("A", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidStructureID(tt.id))
		})
	}
}
