package valueobjects

import "regexp"

// Dots are allowed for search hits such as "AF-P69905-F1-model_v3.pdb" or
// "1a3n-assembly1.cif.gz_A".
var structureIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{3,63}$`)

// IsValidStructureID reports whether s can name a downloadable structure:
// a PDB code, an AlphaFold entry or a search hit target.
func IsValidStructureID(s string) bool {
	return structureIDPattern.MatchString(s)
}
