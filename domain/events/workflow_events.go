package events

// StructureLoaded is raised after a fetched or imported structure replaced the graph.
type StructureLoaded struct {
	BaseEvent
	StructureID  string `json:"structureId,omitempty"`
	ResidueCount int    `json:"residueCount"`
	Dropped      int    `json:"dropped"`
}

func NewStructureLoaded(graphID string, generation int64, structureID string, residues, dropped int) StructureLoaded {
	return StructureLoaded{
		BaseEvent:    newBase(graphID, TypeStructureLoaded, generation),
		StructureID:  structureID,
		ResidueCount: residues,
		Dropped:      dropped,
	}
}

// SearchFinished covers both successful and failed similarity searches.
type SearchFinished struct {
	BaseEvent
	JobID      string `json:"jobId"`
	TicketID   string `json:"ticketId,omitempty"`
	MatchCount int    `json:"matchCount"`
	ErrorType  string `json:"errorType,omitempty"`
	Message    string `json:"message,omitempty"`
}

func NewSearchCompleted(jobID string, generation int64, ticketID string, matches int) SearchFinished {
	return SearchFinished{
		BaseEvent:  newBase(jobID, TypeSearchCompleted, generation),
		JobID:      jobID,
		TicketID:   ticketID,
		MatchCount: matches,
	}
}

func NewSearchFailed(jobID string, generation int64, ticketID, errorType, message string) SearchFinished {
	return SearchFinished{
		BaseEvent: newBase(jobID, TypeSearchFailed, generation),
		JobID:     jobID,
		TicketID:  ticketID,
		ErrorType: errorType,
		Message:   message,
	}
}

type SnapshotSaved struct {
	BaseEvent
	Name         string `json:"name"`
	ResidueCount int    `json:"residueCount"`
}

func NewSnapshotSaved(snapshotID, name string, residues int) SnapshotSaved {
	return SnapshotSaved{
		BaseEvent:    newBase(snapshotID, TypeSnapshotSaved, 1),
		Name:         name,
		ResidueCount: residues,
	}
}
