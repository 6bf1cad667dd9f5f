package valueobjects

import (
	"strings"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// AminoAcid is one of the 20 canonical residue types, keyed by its
// three-letter code.
type AminoAcid string

const (
	Alanine       AminoAcid = "ALA"
	Arginine      AminoAcid = "ARG"
	Asparagine    AminoAcid = "ASN"
	AsparticAcid  AminoAcid = "ASP"
	Cysteine      AminoAcid = "CYS"
	Glutamine     AminoAcid = "GLN"
	GlutamicAcid  AminoAcid = "GLU"
	Glycine       AminoAcid = "GLY"
	Histidine     AminoAcid = "HIS"
	Isoleucine    AminoAcid = "ILE"
	Leucine       AminoAcid = "LEU"
	Lysine        AminoAcid = "LYS"
	Methionine    AminoAcid = "MET"
	Phenylalanine AminoAcid = "PHE"
	Proline       AminoAcid = "PRO"
	Serine        AminoAcid = "SER"
	Threonine     AminoAcid = "THR"
	Tryptophan    AminoAcid = "TRP"
	Tyrosine      AminoAcid = "TYR"
	Valine        AminoAcid = "VAL"
)

var canonical = []AminoAcid{
	Alanine, Arginine, Asparagine, AsparticAcid, Cysteine,
	Glutamine, GlutamicAcid, Glycine, Histidine, Isoleucine,
	Leucine, Lysine, Methionine, Phenylalanine, Proline,
	Serine, Threonine, Tryptophan, Tyrosine, Valine,
}

var oneLetter = map[AminoAcid]byte{
	Alanine: 'A', Arginine: 'R', Asparagine: 'N', AsparticAcid: 'D', Cysteine: 'C',
	Glutamine: 'Q', GlutamicAcid: 'E', Glycine: 'G', Histidine: 'H', Isoleucine: 'I',
	Leucine: 'L', Lysine: 'K', Methionine: 'M', Phenylalanine: 'F', Proline: 'P',
	Serine: 'S', Threonine: 'T', Tryptophan: 'W', Tyrosine: 'Y', Valine: 'V',
}

// aliases maps modified or protonation-state residue names found in
// deposited structures to their parent amino acid.
var aliases = map[string]AminoAcid{
	"MSE": Methionine,
	"SEC": Cysteine,
	"CYX": Cysteine,
	"CYM": Cysteine,
	"HSD": Histidine,
	"HSE": Histidine,
	"HSP": Histidine,
	"HID": Histidine,
	"HIE": Histidine,
	"HIP": Histidine,
	"ASH": AsparticAcid,
	"GLH": GlutamicAcid,
	"LYN": Lysine,
}

// ParseAminoAcid accepts a canonical three-letter code in any case.
func ParseAminoAcid(code string) (AminoAcid, error) {
	aa := AminoAcid(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := oneLetter[aa]; !ok {
		return "", pkgerrors.NewValidationError("unknown amino acid code").WithDetail("code", code)
	}
	return aa, nil
}

// ResolveResidueName maps a structure-file residue name to an amino acid,
// accepting canonical codes and the alias table. The second result is
// false for ligands, nucleotides and other unrecognised names.
func ResolveResidueName(name string) (AminoAcid, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := oneLetter[AminoAcid(upper)]; ok {
		return AminoAcid(upper), true
	}
	aa, ok := aliases[upper]
	return aa, ok
}

// AllAminoAcids lists the canonical types in alphabetical order of their full names.
func AllAminoAcids() []AminoAcid {
	out := make([]AminoAcid, len(canonical))
	copy(out, canonical)
	return out
}

func (a AminoAcid) String() string {
	return string(a)
}

// IsValid reports whether a is one of the canonical codes.
func (a AminoAcid) IsValid() bool {
	_, ok := oneLetter[a]
	return ok
}

// OneLetter returns the single-letter code, or 'X' when a is not canonical.
func (a AminoAcid) OneLetter() byte {
	if c, ok := oneLetter[a]; ok {
		return c
	}
	return 'X'
}
