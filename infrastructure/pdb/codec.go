// Package pdb reads and writes the fixed-column PDB text format, reduced to
// one Cα atom per residue.
package pdb

import (
	"fmt"
	"strings"

	"github.com/yash-217/yash.fun/domain/core/entities"
)

const (
	// atomFormat lays out an ATOM record in PDB v3.3 columns:
	// serial 7-11, name 13-16, resName 18-20, chain 22, resSeq 23-26,
	// x/y/z 31-54, occupancy 55-60, tempFactor 61-66, element 77-78.
	atomFormat = "ATOM  %5d  CA  %3s %c%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n"

	defaultChain = 'A'
	occupancy    = 1.00
	tempFactor   = 0.00
	element      = "C"

	maxSerial = 99999
	maxResSeq = 9999

	// %8.3f keeps its width only inside this range.
	minCoord = -999.999
	maxCoord = 9999.999
)

// ExportResult is the text of an export plus whether it is fit to send
// anywhere. Export never fails; problems surface as warnings.
type ExportResult struct {
	Text     string
	IsValid  bool
	Warnings []string
}

// Export writes one ATOM record per residue, in order, followed by END.
func Export(residues []*entities.Residue) ExportResult {
	res := ExportResult{IsValid: true}
	if len(residues) == 0 {
		res.IsValid = false
		res.Warnings = append(res.Warnings, "structure has no residues")
	}

	var b strings.Builder
	wrapped := false
	for i, r := range residues {
		serial := i + 1
		pos := r.Position()

		if !pos.IsFinite() {
			res.IsValid = false
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("residue %d (%s) has non-finite coordinates", serial, r.AminoAcid()))
		} else if !fitsColumn(pos.X()) || !fitsColumn(pos.Y()) || !fitsColumn(pos.Z()) {
			res.IsValid = false
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("residue %d (%s) has coordinates outside the PDB column range", serial, r.AminoAcid()))
		}

		if serial > maxResSeq {
			wrapped = true
		}
		fmt.Fprintf(&b, atomFormat,
			wrap(serial, maxSerial),
			r.AminoAcid().String(),
			defaultChain,
			wrap(serial, maxResSeq),
			pos.X(), pos.Y(), pos.Z(),
			occupancy, tempFactor,
			element,
		)
	}
	b.WriteString("END\n")

	if wrapped {
		res.Warnings = append(res.Warnings, "residue numbers wrapped past 9999")
	}
	res.Text = b.String()
	return res
}

func fitsColumn(v float64) bool {
	return v >= minCoord && v <= maxCoord
}

// wrap keeps n inside a fixed-width numeric column, cycling from 1 again.
func wrap(n, limit int) int {
	return (n-1)%limit + 1
}
