package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Catalog serves saved snapshots and one-shot searches without holding a
// graph. Every call reads what it needs from the snapshot store, so any
// number of short-lived instances can serve the same catalog.
type Catalog struct {
	orchestrator *SearchOrchestrator
	fetcher      *StructureFetcher
	snapshots    ports.SnapshotRepository
	archive      ports.StructureArchive
	metrics      *observability.Collector
	logger       *zap.Logger
}

// CatalogDeps are the collaborators of a Catalog. Archive and Metrics may
// be nil.
type CatalogDeps struct {
	Orchestrator *SearchOrchestrator
	Fetcher      *StructureFetcher
	Snapshots    ports.SnapshotRepository
	Archive      ports.StructureArchive
	Metrics      *observability.Collector
	Logger       *zap.Logger
}

// NewCatalog creates a catalog.
func NewCatalog(deps CatalogDeps) *Catalog {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		orchestrator: deps.Orchestrator,
		fetcher:      deps.Fetcher,
		snapshots:    deps.Snapshots,
		archive:      deps.Archive,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// ImportStructure downloads structureID and saves it as a snapshot called
// name.
func (c *Catalog) ImportStructure(ctx context.Context, name, structureID string) (*entities.Snapshot, error) {
	if c.fetcher == nil {
		return nil, pkgerrors.NewInternalError("structure fetching is not configured")
	}
	result, err := c.fetcher.Fetch(ctx, structureID)
	if err != nil {
		return nil, err
	}
	return c.save(ctx, name, result.StructureID, result.Residues)
}

// ImportText parses PDB text and saves it as a snapshot called name.
func (c *Catalog) ImportText(ctx context.Context, name, text string) (*entities.Snapshot, error) {
	residues, idCode, err := parseStructure(text)
	if err != nil {
		return nil, err
	}
	return c.save(ctx, name, idCode, residues)
}

func (c *Catalog) save(ctx context.Context, name, source string, residues []*entities.Residue) (*entities.Snapshot, error) {
	if c.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}
	snapshot, err := entities.NewSnapshot(name, source, residues)
	if err != nil {
		return nil, err
	}
	if c.archive != nil {
		if export := pdb.Export(residues); export.IsValid {
			key := snapshot.ID + ".pdb"
			if _, err := c.archive.Put(ctx, key, export.Text); err != nil {
				return nil, pkgerrors.Wrap(err, "archiving snapshot structure")
			}
			snapshot.ArchiveKey = key
		}
	}
	err = c.snapshots.Save(ctx, snapshot)
	c.record("save", err)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Snapshot imported",
		zap.String("snapshotID", snapshot.ID),
		zap.String("source", source),
		zap.Int("residues", snapshot.ResidueCount()),
	)
	return snapshot, nil
}

// Get returns a snapshot with its residues.
func (c *Catalog) Get(ctx context.Context, id string) (*entities.Snapshot, error) {
	if c.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}
	snapshot, err := c.snapshots.Get(ctx, id)
	c.record("get", err)
	return snapshot, err
}

// List returns snapshot headers, newest first.
func (c *Catalog) List(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	if c.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}
	list, err := c.snapshots.List(ctx, limit)
	c.record("list", err)
	return list, err
}

// Delete removes a snapshot.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if c.snapshots == nil {
		return pkgerrors.NewInternalError("snapshots are not configured")
	}
	err := c.snapshots.Delete(ctx, id)
	c.record("delete", err)
	return err
}

// Export renders a snapshot as PDB text.
func (c *Catalog) Export(ctx context.Context, id string) (pdb.ExportResult, error) {
	snapshot, err := c.Get(ctx, id)
	if err != nil {
		return pdb.ExportResult{}, err
	}
	return pdb.Export(snapshot.Residues), nil
}

// SearchSnapshot runs a similarity search for a snapshot and waits for
// the matches. Snapshots never change, so the outcome's generation is 0.
func (c *Catalog) SearchSnapshot(ctx context.Context, id string) (*SearchOutcome, error) {
	snapshot, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.search(ctx, snapshot.Residues)
}

// SearchText runs a similarity search for PDB text and waits for the
// matches.
func (c *Catalog) SearchText(ctx context.Context, text string) (*SearchOutcome, error) {
	residues, _, err := parseStructure(text)
	if err != nil {
		return nil, err
	}
	return c.search(ctx, residues)
}

func (c *Catalog) search(ctx context.Context, residues []*entities.Residue) (*SearchOutcome, error) {
	if c.orchestrator == nil {
		return nil, pkgerrors.NewInternalError("search is not configured")
	}
	return c.orchestrator.Search(ctx, residues, 0)
}

func (c *Catalog) record(operation string, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.Snapshots.WithLabelValues(operation, status).Inc()
}

// parseStructure reads PDB text that must hold at least one residue.
func parseStructure(text string) ([]*entities.Residue, string, error) {
	report, err := pdb.Parse(strings.NewReader(text))
	if err != nil {
		return nil, "", pkgerrors.NewParseError("unreadable structure text").WithCause(err)
	}
	if len(report.Residues) == 0 {
		return nil, "", pkgerrors.NewParseError("no residues found in structure text").
			WithDetail("dropped", len(report.Dropped))
	}
	return report.Residues, report.IDCode, nil
}
