package events

// Event sources
const (
	// SourceWorkbench is the residue workbench service
	SourceWorkbench = "residuelab.workbench"
)

// Event types
const (
	// Residue events
	TypeResidueAdded        = "residue.added"
	TypeResidueUpdated      = "residue.updated"
	TypeResidueRemoved      = "residue.removed"
	TypeResidueConnected    = "residue.connected"
	TypeResidueDisconnected = "residue.disconnected"

	// Graph events
	TypeGraphCleared  = "graph.cleared"
	TypeGraphReplaced = "graph.replaced"

	// Workflow events
	TypeStructureLoaded = "structure.loaded"
	TypeSearchCompleted = "search.completed"
	TypeSearchFailed    = "search.failed"
	TypeSnapshotSaved   = "snapshot.saved"
)
