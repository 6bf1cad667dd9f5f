package ports

import (
	"context"
	"encoding/json"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/events"
)

// SearchQuery is the outbound payload of a similarity search.
type SearchQuery struct {
	// PDB is the exported structure text.
	PDB       string
	Mode      string
	Databases []string
}

// TicketStatus is one answer from the status endpoint.
type TicketStatus struct {
	Status string
	// Message carries the service's explanation for an error status.
	Message string
	// Result is present when the service inlines the payload with a complete status.
	Result json.RawMessage
}

// SearchClient talks to a remote structure similarity search service.
type SearchClient interface {
	// SubmitTicket uploads the query and returns the ticket identifier.
	SubmitTicket(ctx context.Context, query SearchQuery) (string, error)

	// TicketStatus fetches the current state of a ticket.
	TicketStatus(ctx context.Context, ticketID string) (*TicketStatus, error)

	// TicketResult fetches the result payload of a completed ticket.
	TicketResult(ctx context.Context, ticketID string) (json.RawMessage, error)
}

// StructureSource downloads structure files from a public repository.
type StructureSource interface {
	// FetchStructure returns the raw PDB text for an identifier.
	FetchStructure(ctx context.Context, structureID string) (string, error)
}

// SnapshotRepository persists saved graphs.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *entities.Snapshot) error
	Get(ctx context.Context, id string) (*entities.Snapshot, error)
	// List returns snapshot headers, newest first. Residues may be omitted.
	List(ctx context.Context, limit int) ([]*entities.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// StructureArchive stores exported PDB text.
type StructureArchive interface {
	// Put stores text under key and returns a locator for it.
	Put(ctx context.Context, key string, text string) (string, error)
	Get(ctx context.Context, key string) (string, error)
}

// EventBus publishes domain events to interested parties.
type EventBus interface {
	Publish(ctx context.Context, evts []events.DomainEvent) error
}
