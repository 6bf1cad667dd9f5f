package aggregates

import (
	"github.com/google/uuid"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/domain/events"
)

// GraphID identifies one residue graph (one workspace).
type GraphID string

// NewGraphID creates a new random GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// String returns the string representation
func (id GraphID) String() string {
	return string(id)
}

// ResiduePatch describes a partial update. Nil fields are left unchanged.
// X, Y and Z replace single coordinates of Position, or of the current
// position when Position is nil.
type ResiduePatch struct {
	AminoAcid *valueobjects.AminoAcid
	Position  *valueobjects.Position
	X, Y, Z   *float64
	Rotation  *valueobjects.Rotation
}

// IsEmpty reports whether the patch changes nothing.
func (p ResiduePatch) IsEmpty() bool {
	return p.AminoAcid == nil && p.Position == nil && !p.movesAxis() && p.Rotation == nil
}

func (p ResiduePatch) movesAxis() bool {
	return p.X != nil || p.Y != nil || p.Z != nil
}

func (p ResiduePatch) position(current valueobjects.Position) valueobjects.Position {
	if p.Position != nil {
		current = *p.Position
	}
	return valueobjects.Vec(axis(p.X, current.X()), axis(p.Y, current.Y()), axis(p.Z, current.Z()))
}

func axis(v *float64, current float64) float64 {
	if v == nil {
		return current
	}
	return *v
}

// ResidueGraph is the authoritative store of residues and their forward bonds.
//
// It is not safe for concurrent use; a single owner serialises access.
// Every operation is total: unknown IDs turn mutations into no-ops and the
// boolean results only tell the caller whether anything changed.
type ResidueGraph struct {
	id         GraphID
	residues   map[valueobjects.ResidueID]*entities.Residue
	order      []valueobjects.ResidueID
	selected   *valueobjects.ResidueID
	generation int64
	events     []events.DomainEvent
}

// NewResidueGraph creates an empty graph.
func NewResidueGraph() *ResidueGraph {
	return NewResidueGraphWithID(NewGraphID())
}

// NewResidueGraphWithID creates an empty graph with a known identity.
func NewResidueGraphWithID(id GraphID) *ResidueGraph {
	return &ResidueGraph{
		id:       id,
		residues: make(map[valueobjects.ResidueID]*entities.Residue),
		order:    make([]valueobjects.ResidueID, 0),
		events:   make([]events.DomainEvent, 0),
	}
}

func (g *ResidueGraph) ID() GraphID {
	return g.id
}

// Generation increases by one on every successful mutation. Callers holding
// a snapshot compare generations to detect that the graph moved on.
func (g *ResidueGraph) Generation() int64 {
	return g.generation
}

// Len returns the number of residues.
func (g *ResidueGraph) Len() int {
	return len(g.order)
}

// Has reports whether id is present.
func (g *ResidueGraph) Has(id valueobjects.ResidueID) bool {
	_, ok := g.residues[id]
	return ok
}

// Residue returns a copy of the residue with the given id.
func (g *ResidueGraph) Residue(id valueobjects.ResidueID) (*entities.Residue, bool) {
	r, ok := g.residues[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Residues returns copies of all residues in insertion order.
func (g *ResidueGraph) Residues() []*entities.Residue {
	out := make([]*entities.Residue, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.residues[id].Clone())
	}
	return out
}

// Selected returns the selected residue ID, if any.
func (g *ResidueGraph) Selected() *valueobjects.ResidueID {
	if g.selected == nil {
		return nil
	}
	id := *g.selected
	return &id
}

// Add creates a residue and appends it to the insertion order.
func (g *ResidueGraph) Add(aa valueobjects.AminoAcid, pos valueobjects.Position) valueobjects.ResidueID {
	r := entities.NewResidue(aa, pos)
	g.residues[r.ID()] = r
	g.order = append(g.order, r.ID())
	g.bump()
	g.addEvent(events.NewResidueAdded(g.id.String(), g.generation, r.ID().String(), aa.String(), pos.X(), pos.Y(), pos.Z()))
	return r.ID()
}

// Update applies a partial update. It is a no-op for unknown IDs or empty patches.
func (g *ResidueGraph) Update(id valueobjects.ResidueID, patch ResiduePatch) bool {
	r, ok := g.residues[id]
	if !ok || patch.IsEmpty() {
		return false
	}

	fields := make([]string, 0, 3)
	if patch.AminoAcid != nil {
		r.SetAminoAcid(*patch.AminoAcid)
		fields = append(fields, "aminoAcid")
	}
	if patch.Position != nil || patch.movesAxis() {
		r.MoveTo(patch.position(r.Position()))
		fields = append(fields, "position")
	}
	if patch.Rotation != nil {
		r.SetRotation(*patch.Rotation)
		fields = append(fields, "rotation")
	}

	g.bump()
	g.addEvent(events.NewResidueUpdated(g.id.String(), g.generation, id.String(), fields))
	return true
}

// Remove deletes a residue, clears every bond pointing at it and drops the
// selection if it targeted the removed residue.
func (g *ResidueGraph) Remove(id valueobjects.ResidueID) bool {
	if _, ok := g.residues[id]; !ok {
		return false
	}

	delete(g.residues, id)
	for i, oid := range g.order {
		if oid.Equals(id) {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	var detached []string
	for _, oid := range g.order {
		r := g.residues[oid]
		if r.IsConnectedTo(id) {
			r.Disconnect()
			detached = append(detached, oid.String())
		}
	}

	wasSelected := g.selected != nil && g.selected.Equals(id)
	if wasSelected {
		g.selected = nil
	}

	g.bump()
	g.addEvent(events.NewResidueRemoved(g.id.String(), g.generation, id.String(), detached, wasSelected))
	return true
}

// Connect bonds from forward to to. Only the existence of from is checked;
// self-connections are ignored.
func (g *ResidueGraph) Connect(from, to valueobjects.ResidueID) bool {
	r, ok := g.residues[from]
	if !ok {
		return false
	}
	if !r.ConnectTo(to) {
		return false
	}
	g.bump()
	g.addEvent(events.NewResidueConnected(g.id.String(), g.generation, from.String(), to.String()))
	return true
}

// Disconnect clears the forward bond of id.
func (g *ResidueGraph) Disconnect(id valueobjects.ResidueID) bool {
	r, ok := g.residues[id]
	if !ok {
		return false
	}
	prev := r.Disconnect()
	if prev == nil {
		return false
	}
	g.bump()
	g.addEvent(events.NewResidueDisconnected(g.id.String(), g.generation, id.String(), prev.String()))
	return true
}

// Select sets the selection. nil clears it; an unknown id is ignored and
// the current selection stays.
func (g *ResidueGraph) Select(id *valueobjects.ResidueID) {
	if id == nil {
		g.selected = nil
		return
	}
	if !g.Has(*id) {
		return
	}
	sel := *id
	g.selected = &sel
}

// Clear removes every residue and the selection.
func (g *ResidueGraph) Clear() {
	removed := len(g.order)
	g.residues = make(map[valueobjects.ResidueID]*entities.Residue)
	g.order = make([]valueobjects.ResidueID, 0)
	g.selected = nil
	g.bump()
	g.addEvent(events.NewGraphCleared(g.id.String(), g.generation, removed))
}

// ReplaceAll swaps the entire content for residues, in the given order.
// Duplicate IDs keep their first occurrence and bonds to residues outside
// the new set are dropped. The selection is cleared.
func (g *ResidueGraph) ReplaceAll(residues []*entities.Residue) {
	previous := len(g.order)

	next := make(map[valueobjects.ResidueID]*entities.Residue, len(residues))
	order := make([]valueobjects.ResidueID, 0, len(residues))
	for _, r := range residues {
		if r == nil {
			continue
		}
		if _, dup := next[r.ID()]; dup {
			continue
		}
		next[r.ID()] = r.Clone()
		order = append(order, r.ID())
	}
	for _, id := range order {
		r := next[id]
		if target := r.ConnectedTo(); target != nil {
			if _, ok := next[*target]; !ok {
				r.Disconnect()
			}
		}
	}

	g.residues = next
	g.order = order
	g.selected = nil
	g.bump()
	g.addEvent(events.NewGraphReplaced(g.id.String(), g.generation, previous, len(order)))
}

// IncomingBonds returns the IDs of residues bonded forward to id, in insertion order.
func (g *ResidueGraph) IncomingBonds(id valueobjects.ResidueID) []valueobjects.ResidueID {
	var out []valueobjects.ResidueID
	for _, oid := range g.order {
		if g.residues[oid].IsConnectedTo(id) {
			out = append(out, oid)
		}
	}
	return out
}

// GetUncommittedEvents returns events raised since the last commit.
func (g *ResidueGraph) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(g.events))
	copy(out, g.events)
	return out
}

// MarkEventsAsCommitted drops the pending events.
func (g *ResidueGraph) MarkEventsAsCommitted() {
	g.events = g.events[:0]
}

func (g *ResidueGraph) bump() {
	g.generation++
}

func (g *ResidueGraph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
