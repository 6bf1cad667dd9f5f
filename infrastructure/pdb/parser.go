package pdb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

// DroppedRecord is a Cα record that could not become a residue.
type DroppedRecord struct {
	Line        int    `json:"line"`
	ResidueName string `json:"residueName"`
	Chain       string `json:"chain"`
	SeqNum      string `json:"seqNum"`
	Reason      string `json:"reason"`
}

// ImportReport is everything Parse recovered from a PDB stream.
type ImportReport struct {
	IDCode   string
	Residues []*entities.Residue
	Dropped  []DroppedRecord
	// Models counts MODEL records seen before parsing stopped.
	Models int
}

type residueKey struct {
	chain  byte
	seqNum string
	iCode  byte
}

type modification struct {
	chain byte
	from  string
}

type parser struct {
	report *ImportReport
	line   []byte
	lineNo int
	// last is the residue of the previous kept Cα. Atoms of one residue
	// are contiguous, so a repeated residue number further down the file
	// (wrapped numbering past 9999) is a new residue.
	last     residueKey
	haveLast bool
	modified map[modification]string
	done     bool
}

// Import reads residues out of PDB text. Records that cannot be mapped are
// skipped; use Parse to learn what was dropped.
func Import(text string) []*entities.Residue {
	report, err := Parse(strings.NewReader(text))
	if err != nil {
		return nil
	}
	return report.Residues
}

// Parse reads ATOM and HETATM records and keeps the Cα atom of each residue.
//
// Only the first model is read. Alternate locations other than blank or
// 'A' are ignored. Residue names resolve through MODRES records, then the
// canonical codes and their common aliases; anything else is dropped and
// listed in the report. Every residue gets a fresh ID, identity rotation
// and no bond. The only error is a failure of r itself.
func Parse(r io.Reader) (*ImportReport, error) {
	p := parser{
		report:   &ImportReport{Residues: make([]*entities.Residue, 0, 64)},
		modified: make(map[modification]string),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1<<20)
	for !p.done && scanner.Scan() {
		p.lineNo++
		p.line = bytes.TrimRight(scanner.Bytes(), "\r")
		p.parseLine()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.report, nil
}

func (p *parser) parseLine() {
	switch p.cols(1, 6) {
	case "HEADER":
		p.report.IDCode = p.cols(63, 66)
	case "MODRES":
		mod := modification{chain: p.at(17), from: p.cols(13, 15)}
		p.modified[mod] = p.cols(25, 27)
	case "MODEL":
		p.report.Models++
	case "ENDMDL", "END":
		p.done = true
	case "ATOM", "HETATM":
		p.parseAtom()
	}
}

func (p *parser) parseAtom() {
	if p.cols(13, 16) != "CA" {
		return
	}
	if alt := p.at(17); alt != ' ' && alt != 0 && alt != 'A' {
		return
	}

	name := p.cols(18, 20)
	key := residueKey{chain: p.at(22), seqNum: p.cols(23, 26), iCode: p.at(27)}
	if p.haveLast && key == p.last {
		return
	}

	aa, ok := p.resolve(key.chain, name)
	if !ok {
		// Calcium ions share the atom name; only report residues that
		// could plausibly have been amino acids.
		if p.cols(1, 6) == "ATOM" || len(name) == 3 {
			p.drop(name, key, "unrecognised residue name")
		}
		return
	}

	x, errX := p.atof(31, 38)
	y, errY := p.atof(39, 46)
	z, errZ := p.atof(47, 54)
	if errX != nil || errY != nil || errZ != nil {
		p.drop(name, key, "malformed coordinates")
		return
	}
	pos, err := valueobjects.NewPosition3D(x, y, z)
	if err != nil {
		p.drop(name, key, "non-finite coordinates")
		return
	}

	p.last, p.haveLast = key, true
	p.report.Residues = append(p.report.Residues, entities.NewResidue(aa, pos))
}

func (p *parser) resolve(chain byte, name string) (valueobjects.AminoAcid, bool) {
	if std, ok := p.modified[modification{chain: chain, from: name}]; ok {
		if aa, ok := valueobjects.ResolveResidueName(std); ok {
			return aa, true
		}
	}
	return valueobjects.ResolveResidueName(name)
}

func (p *parser) drop(name string, key residueKey, reason string) {
	chain := ""
	if key.chain != 0 && key.chain != ' ' {
		chain = string(key.chain)
	}
	p.report.Dropped = append(p.report.Dropped, DroppedRecord{
		Line:        p.lineNo,
		ResidueName: name,
		Chain:       chain,
		SeqNum:      key.seqNum,
		Reason:      reason,
	})
}

func (p *parser) atof(start, end int) (float64, error) {
	s := p.cols(start, end)
	if s == "" {
		return 0, fmt.Errorf("columns %d-%d are empty", start, end)
	}
	return strconv.ParseFloat(s, 64)
}

// cols returns the trimmed text of the 1-based inclusive column range.
func (p *parser) cols(start, end int) string {
	rs, re := start-1, end
	if rs >= len(p.line) || rs < 0 {
		return ""
	}
	if re > len(p.line) {
		re = len(p.line)
	}
	if re < rs {
		return ""
	}
	return string(bytes.TrimSpace(p.line[rs:re]))
}

func (p *parser) at(column int) byte {
	i := column - 1
	if i < 0 || i >= len(p.line) {
		return 0
	}
	return p.line[i]
}
