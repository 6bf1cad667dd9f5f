package events

// Graph events use the graph ID as aggregate ID and the graph generation
// as version, so consumers can order and de-duplicate them.

type ResidueAdded struct {
	BaseEvent
	ResidueID string  `json:"residueId"`
	AminoAcid string  `json:"aminoAcid"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

func NewResidueAdded(graphID string, generation int64, residueID, aminoAcid string, x, y, z float64) ResidueAdded {
	return ResidueAdded{
		BaseEvent: newBase(graphID, TypeResidueAdded, generation),
		ResidueID: residueID,
		AminoAcid: aminoAcid,
		X:         x,
		Y:         y,
		Z:         z,
	}
}

type ResidueUpdated struct {
	BaseEvent
	ResidueID string   `json:"residueId"`
	Fields    []string `json:"fields"`
}

func NewResidueUpdated(graphID string, generation int64, residueID string, fields []string) ResidueUpdated {
	return ResidueUpdated{
		BaseEvent: newBase(graphID, TypeResidueUpdated, generation),
		ResidueID: residueID,
		Fields:    fields,
	}
}

// ResidueRemoved lists the residues whose bond pointed at the removed one.
type ResidueRemoved struct {
	BaseEvent
	ResidueID    string   `json:"residueId"`
	DetachedFrom []string `json:"detachedFrom,omitempty"`
	WasSelected  bool     `json:"wasSelected"`
}

func NewResidueRemoved(graphID string, generation int64, residueID string, detached []string, wasSelected bool) ResidueRemoved {
	return ResidueRemoved{
		BaseEvent:    newBase(graphID, TypeResidueRemoved, generation),
		ResidueID:    residueID,
		DetachedFrom: detached,
		WasSelected:  wasSelected,
	}
}

type ResidueConnected struct {
	BaseEvent
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
}

func NewResidueConnected(graphID string, generation int64, fromID, toID string) ResidueConnected {
	return ResidueConnected{
		BaseEvent: newBase(graphID, TypeResidueConnected, generation),
		FromID:    fromID,
		ToID:      toID,
	}
}

type ResidueDisconnected struct {
	BaseEvent
	ResidueID    string `json:"residueId"`
	PreviousToID string `json:"previousToId"`
}

func NewResidueDisconnected(graphID string, generation int64, residueID, previous string) ResidueDisconnected {
	return ResidueDisconnected{
		BaseEvent:    newBase(graphID, TypeResidueDisconnected, generation),
		ResidueID:    residueID,
		PreviousToID: previous,
	}
}

type GraphCleared struct {
	BaseEvent
	RemovedCount int `json:"removedCount"`
}

func NewGraphCleared(graphID string, generation int64, removed int) GraphCleared {
	return GraphCleared{
		BaseEvent:    newBase(graphID, TypeGraphCleared, generation),
		RemovedCount: removed,
	}
}

type GraphReplaced struct {
	BaseEvent
	PreviousCount int `json:"previousCount"`
	ResidueCount  int `json:"residueCount"`
}

func NewGraphReplaced(graphID string, generation int64, previous, current int) GraphReplaced {
	return GraphReplaced{
		BaseEvent:     newBase(graphID, TypeGraphReplaced, generation),
		PreviousCount: previous,
		ResidueCount:  current,
	}
}
