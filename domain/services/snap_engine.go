package services

import (
	"math"

	"github.com/yash-217/yash.fun/domain/core/aggregates"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
)

const (
	// DefaultBondDistance is the Cα–Cα distance of a trans peptide bond, in ångström.
	DefaultBondDistance = 3.8
	// DefaultSnapThreshold is how close a drop must land to a residue to bond with it.
	DefaultSnapThreshold = 5.0
)

// SnapEngine decides where a dragged residue comes to rest and whether it
// bonds to a neighbour.
type SnapEngine struct {
	BondDistance  float64
	SnapThreshold float64
}

// NewSnapEngine returns an engine with the standard peptide geometry.
func NewSnapEngine() *SnapEngine {
	return &SnapEngine{
		BondDistance:  DefaultBondDistance,
		SnapThreshold: DefaultSnapThreshold,
	}
}

// SnapResult describes what a drop did to the graph.
type SnapResult struct {
	Moved      bool
	Bonded     bool
	NeighborID *valueobjects.ResidueID
	Position   valueobjects.Position
	// Distance from the drop point to the chosen neighbour. Zero when nothing bonded.
	Distance float64
}

// FindNeighbor returns the residue closest to drop that dragged may bond to:
// the dragged residue itself and residues already bonded to it are skipped,
// the distance must be strictly below the threshold, and ties go to the
// earliest inserted residue.
func (e *SnapEngine) FindNeighbor(g *aggregates.ResidueGraph, dragged valueobjects.ResidueID, drop valueobjects.Position) (*valueobjects.ResidueID, float64) {
	var (
		best     *valueobjects.ResidueID
		bestDist = math.Inf(1)
	)
	for _, r := range g.Residues() {
		if r.ID().Equals(dragged) || r.IsConnectedTo(dragged) {
			continue
		}
		d := drop.DistanceTo(r.Position())
		if d < bestDist {
			id := r.ID()
			best = &id
			bestDist = d
		}
	}
	if best == nil || !(bestDist < e.SnapThreshold) {
		return nil, 0
	}
	return best, bestDist
}

// BondedPosition places a residue exactly BondDistance from neighbor along
// the direction towards drop. A drop on top of the neighbour uses +X.
func (e *SnapEngine) BondedPosition(neighbor, drop valueobjects.Position) valueobjects.Position {
	dir, ok := drop.Sub(neighbor).Unit()
	if !ok {
		dir = valueobjects.Vec(1, 0, 0)
	}
	return neighbor.Add(dir.Scale(e.BondDistance))
}

// Snap resolves a drag-release of dragged at drop and applies it to g.
// Unknown dragged IDs leave the graph untouched.
func (e *SnapEngine) Snap(g *aggregates.ResidueGraph, dragged valueobjects.ResidueID, drop valueobjects.Position) SnapResult {
	if !g.Has(dragged) {
		return SnapResult{}
	}

	neighborID, dist := e.FindNeighbor(g, dragged, drop)
	if neighborID == nil {
		g.Update(dragged, aggregates.ResiduePatch{Position: &drop})
		return SnapResult{Moved: true, Position: drop}
	}

	neighbor, _ := g.Residue(*neighborID)
	pos := e.BondedPosition(neighbor.Position(), drop)
	g.Update(dragged, aggregates.ResiduePatch{Position: &pos})
	g.Connect(dragged, *neighborID)

	return SnapResult{
		Moved:      true,
		Bonded:     true,
		NeighborID: neighborID,
		Position:   pos,
		Distance:   dist,
	}
}
