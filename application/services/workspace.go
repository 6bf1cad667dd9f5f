package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/aggregates"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/domain/events"
	domainservices "github.com/yash-217/yash.fun/domain/services"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// GraphView is a consistent copy of the graph at one generation.
type GraphView struct {
	GraphID    string
	Generation int64
	Residues   []*entities.Residue
	Selected   *valueobjects.ResidueID
}

// ImportOutcome reports what a text import or fetch put into the graph.
type ImportOutcome struct {
	StructureID string
	Generation  int64
	Residues    []*entities.Residue
	Dropped     []pdb.DroppedRecord
	Offset      *valueobjects.Position
	Cached      bool
}

// WorkspaceDeps are the collaborators of a Workspace. Archive, Bus and
// Metrics are optional.
type WorkspaceDeps struct {
	Snap      *domainservices.SnapEngine
	Fetcher   *StructureFetcher
	Jobs      *SearchJobs
	Snapshots ports.SnapshotRepository
	Archive   ports.StructureArchive
	Bus       ports.EventBus
	Metrics   *observability.Collector
	Logger    *zap.Logger
}

// Workspace is the single owner of a residue graph. The graph itself is
// not safe for concurrent use; every access goes through the workspace lock.
type Workspace struct {
	mu    sync.Mutex
	graph *aggregates.ResidueGraph
	snap  domainservices.SnapEngine

	fetcher   *StructureFetcher
	jobs      *SearchJobs
	snapshots ports.SnapshotRepository
	archive   ports.StructureArchive
	bus       ports.EventBus
	metrics   *observability.Collector
	logger    *zap.Logger

	closeOnce sync.Once
}

// NewWorkspace creates a workspace around an empty graph.
func NewWorkspace(deps WorkspaceDeps) *Workspace {
	snap := domainservices.NewSnapEngine()
	if deps.Snap != nil {
		snap = deps.Snap
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		graph:     aggregates.NewResidueGraph(),
		snap:      *snap,
		fetcher:   deps.Fetcher,
		jobs:      deps.Jobs,
		snapshots: deps.Snapshots,
		archive:   deps.Archive,
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// mutate runs fn under the lock and then publishes the events it raised.
func (w *Workspace) mutate(ctx context.Context, operation string, fn func(g *aggregates.ResidueGraph) error) error {
	w.mu.Lock()
	err := fn(w.graph)
	pending := w.graph.GetUncommittedEvents()
	w.graph.MarkEventsAsCommitted()
	size := w.graph.Len()
	w.mu.Unlock()

	if len(pending) > 0 && w.metrics != nil {
		w.metrics.GraphMutations.WithLabelValues(operation).Inc()
		w.metrics.Residues.Set(float64(size))
	}
	w.publish(ctx, pending)
	return err
}

func (w *Workspace) publish(ctx context.Context, evts []events.DomainEvent) {
	if w.bus == nil || len(evts) == 0 {
		return
	}
	// Publishing outlives a cancelled request; the mutation already happened.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.bus.Publish(ctx, evts); err != nil {
		w.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.Error(err),
		)
	}
}

// View returns copies of every residue in insertion order with the selection.
func (w *Workspace) View() GraphView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return GraphView{
		GraphID:    w.graph.ID().String(),
		Generation: w.graph.Generation(),
		Residues:   w.graph.Residues(),
		Selected:   w.graph.Selected(),
	}
}

// Generation returns the graph's mutation counter.
func (w *Workspace) Generation() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Generation()
}

// Residue returns a copy of one residue.
func (w *Workspace) Residue(id valueobjects.ResidueID) (*entities.Residue, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.graph.Residue(id)
	if !ok {
		return nil, residueNotFound(id)
	}
	return r, nil
}

// Add places a new residue.
func (w *Workspace) Add(ctx context.Context, aa valueobjects.AminoAcid, pos valueobjects.Position) (*entities.Residue, error) {
	if !aa.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown amino acid").WithDetail("type", string(aa))
	}
	if !pos.IsFinite() {
		return nil, pkgerrors.NewValidationError("position must be finite")
	}

	var added *entities.Residue
	err := w.mutate(ctx, "add", func(g *aggregates.ResidueGraph) error {
		id := g.Add(aa, pos)
		added, _ = g.Residue(id)
		return nil
	})
	return added, err
}

// Update applies a partial update and returns the result.
func (w *Workspace) Update(ctx context.Context, id valueobjects.ResidueID, patch aggregates.ResiduePatch) (*entities.Residue, error) {
	if patch.AminoAcid != nil && !patch.AminoAcid.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown amino acid").WithDetail("type", string(*patch.AminoAcid))
	}
	if patch.Position != nil && !patch.Position.IsFinite() {
		return nil, pkgerrors.NewValidationError("position must be finite")
	}
	for _, v := range []*float64{patch.X, patch.Y, patch.Z} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return nil, pkgerrors.NewValidationError("position must be finite")
		}
	}

	var updated *entities.Residue
	err := w.mutate(ctx, "update", func(g *aggregates.ResidueGraph) error {
		if !g.Has(id) {
			return residueNotFound(id)
		}
		g.Update(id, patch)
		updated, _ = g.Residue(id)
		return nil
	})
	return updated, err
}

// Remove deletes a residue and every bond that pointed at it.
func (w *Workspace) Remove(ctx context.Context, id valueobjects.ResidueID) error {
	return w.mutate(ctx, "remove", func(g *aggregates.ResidueGraph) error {
		if !g.Remove(id) {
			return residueNotFound(id)
		}
		return nil
	})
}

// Connect bonds from forward to to. Both residues must exist.
func (w *Workspace) Connect(ctx context.Context, from, to valueobjects.ResidueID) error {
	if from.Equals(to) {
		return pkgerrors.NewValidationError("a residue cannot bond to itself")
	}
	return w.mutate(ctx, "connect", func(g *aggregates.ResidueGraph) error {
		if !g.Has(from) {
			return residueNotFound(from)
		}
		if !g.Has(to) {
			return residueNotFound(to)
		}
		g.Connect(from, to)
		return nil
	})
}

// Disconnect clears the forward bond of id.
func (w *Workspace) Disconnect(ctx context.Context, id valueobjects.ResidueID) error {
	return w.mutate(ctx, "disconnect", func(g *aggregates.ResidueGraph) error {
		if !g.Has(id) {
			return residueNotFound(id)
		}
		g.Disconnect(id)
		return nil
	})
}

// Drop resolves the end of a drag at pos, bonding to a close neighbour.
func (w *Workspace) Drop(ctx context.Context, id valueobjects.ResidueID, pos valueobjects.Position) (domainservices.SnapResult, error) {
	if !pos.IsFinite() {
		return domainservices.SnapResult{}, pkgerrors.NewValidationError("position must be finite")
	}

	var result domainservices.SnapResult
	err := w.mutate(ctx, "drop", func(g *aggregates.ResidueGraph) error {
		if !g.Has(id) {
			return residueNotFound(id)
		}
		result = w.snap.Snap(g, id, pos)
		return nil
	})
	if err == nil && w.metrics != nil {
		w.metrics.RecordSnap(result.Bonded)
	}
	return result, err
}

// Select changes the selection. Nil clears it; an unknown id is an error.
func (w *Workspace) Select(id *valueobjects.ResidueID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id != nil && !w.graph.Has(*id) {
		return residueNotFound(*id)
	}
	w.graph.Select(id)
	return nil
}

// Clear empties the graph.
func (w *Workspace) Clear(ctx context.Context) error {
	return w.mutate(ctx, "clear", func(g *aggregates.ResidueGraph) error {
		g.Clear()
		return nil
	})
}

// SnapSettings returns the bonding geometry in use.
func (w *Workspace) SnapSettings() (bondDistance, threshold float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap.BondDistance, w.snap.SnapThreshold
}

// UpdateSnapSettings changes the bonding geometry for later drops.
func (w *Workspace) UpdateSnapSettings(bondDistance, threshold float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if bondDistance > 0 {
		w.snap.BondDistance = bondDistance
	}
	if threshold > 0 {
		w.snap.SnapThreshold = threshold
	}
}

// Export renders the graph as PDB text.
func (w *Workspace) Export() pdb.ExportResult {
	w.mu.Lock()
	residues := w.graph.Residues()
	w.mu.Unlock()
	return pdb.Export(residues)
}

// ImportText replaces the graph with the residues parsed from text.
func (w *Workspace) ImportText(ctx context.Context, text string) (*ImportOutcome, error) {
	report, err := pdb.Parse(strings.NewReader(text))
	if err != nil {
		return nil, pkgerrors.NewParseError("unreadable structure text").WithCause(err)
	}
	if len(report.Residues) == 0 {
		return nil, pkgerrors.NewParseError("no residues found in structure text").
			WithDetail("dropped", len(report.Dropped))
	}
	return w.replace(ctx, "import", report.IDCode, report.Residues, report.Dropped, nil, false)
}

// LoadStructure downloads structureID and replaces the graph with it. The
// graph is untouched unless the whole download and parse succeeded.
func (w *Workspace) LoadStructure(ctx context.Context, structureID string) (*ImportOutcome, error) {
	if w.fetcher == nil {
		return nil, pkgerrors.NewInternalError("structure fetching is not configured")
	}
	result, err := w.fetcher.Fetch(ctx, structureID)
	if err != nil {
		return nil, err
	}
	offset := result.Offset
	return w.replace(ctx, "load", result.StructureID, result.Residues, result.Dropped, &offset, result.Cached)
}

func (w *Workspace) replace(ctx context.Context, operation, structureID string, residues []*entities.Residue, dropped []pdb.DroppedRecord, offset *valueobjects.Position, cached bool) (*ImportOutcome, error) {
	outcome := &ImportOutcome{
		StructureID: structureID,
		Dropped:     dropped,
		Offset:      offset,
		Cached:      cached,
	}
	var graphID string
	err := w.mutate(ctx, operation, func(g *aggregates.ResidueGraph) error {
		g.ReplaceAll(residues)
		graphID = g.ID().String()
		outcome.Generation = g.Generation()
		outcome.Residues = g.Residues()
		return nil
	})
	if err != nil {
		return nil, err
	}
	// published after graph.replaced
	w.publish(ctx, []events.DomainEvent{
		events.NewStructureLoaded(graphID, outcome.Generation, structureID, len(outcome.Residues), len(dropped)),
	})
	w.logger.Info("Graph replaced",
		zap.String("operation", operation),
		zap.String("structureID", structureID),
		zap.Int("residues", len(outcome.Residues)),
		zap.Int("dropped", len(dropped)),
	)
	return outcome, nil
}

// StartSearch submits the current graph as a background search.
func (w *Workspace) StartSearch() (string, error) {
	if w.jobs == nil {
		return "", pkgerrors.NewInternalError("search is not configured")
	}
	w.mu.Lock()
	residues := w.graph.Residues()
	generation := w.graph.Generation()
	w.mu.Unlock()
	return w.jobs.Start(residues, generation)
}

// Search returns a search job, flagged stale when the graph changed since
// it was submitted.
func (w *Workspace) Search(id string) (*SearchJobView, error) {
	if w.jobs == nil {
		return nil, pkgerrors.NewNotFoundError("search job")
	}
	view, err := w.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	view.Stale = view.Generation != w.Generation()
	return view, nil
}

// CancelSearch stops a running search job.
func (w *Workspace) CancelSearch(id string) error {
	if w.jobs == nil {
		return pkgerrors.NewNotFoundError("search job")
	}
	return w.jobs.Cancel(id)
}

// SaveSnapshot stores the current graph, bonds included, under name. The
// exported text is archived alongside when an archive is configured and
// the graph exports cleanly.
func (w *Workspace) SaveSnapshot(ctx context.Context, name string) (*entities.Snapshot, error) {
	if w.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}

	view := w.View()
	snapshot, err := entities.NewSnapshot(name, view.GraphID, view.Residues)
	if err != nil {
		return nil, err
	}

	if w.archive != nil {
		if export := pdb.Export(view.Residues); export.IsValid {
			key := snapshot.ID + ".pdb"
			if _, err := w.archive.Put(ctx, key, export.Text); err != nil {
				return nil, pkgerrors.Wrap(err, "archiving snapshot structure")
			}
			snapshot.ArchiveKey = key
		}
	}

	if err := w.snapshots.Save(ctx, snapshot); err != nil {
		w.recordSnapshot("save", err)
		return nil, err
	}
	w.recordSnapshot("save", nil)
	w.publish(ctx, []events.DomainEvent{events.NewSnapshotSaved(snapshot.ID, snapshot.Name, snapshot.ResidueCount())})
	w.logger.Info("Snapshot saved",
		zap.String("snapshotID", snapshot.ID),
		zap.String("name", snapshot.Name),
		zap.Int("residues", snapshot.ResidueCount()),
	)
	return snapshot, nil
}

// ListSnapshots returns saved snapshot headers, newest first.
func (w *Workspace) ListSnapshots(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	if w.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}
	list, err := w.snapshots.List(ctx, limit)
	w.recordSnapshot("list", err)
	return list, err
}

// RestoreSnapshot replaces the graph with a saved snapshot, keeping its
// residue identities and bonds.
func (w *Workspace) RestoreSnapshot(ctx context.Context, id string) (*ImportOutcome, error) {
	if w.snapshots == nil {
		return nil, pkgerrors.NewInternalError("snapshots are not configured")
	}
	snapshot, err := w.snapshots.Get(ctx, id)
	w.recordSnapshot("get", err)
	if err != nil {
		return nil, err
	}
	return w.replace(ctx, "restore", "snapshot:"+snapshot.Name, snapshot.Residues, nil, nil, false)
}

// DeleteSnapshot removes a saved snapshot.
func (w *Workspace) DeleteSnapshot(ctx context.Context, id string) error {
	if w.snapshots == nil {
		return pkgerrors.NewInternalError("snapshots are not configured")
	}
	err := w.snapshots.Delete(ctx, id)
	w.recordSnapshot("delete", err)
	return err
}

func (w *Workspace) recordSnapshot(operation string, err error) {
	if w.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	w.metrics.Snapshots.WithLabelValues(operation, status).Inc()
}

// Close cancels every running search.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		if w.jobs != nil {
			w.jobs.Close()
		}
		w.logger.Info("Workspace closed")
	})
}

func residueNotFound(id valueobjects.ResidueID) *pkgerrors.AppError {
	return pkgerrors.NewNotFoundError("residue").WithDetail("id", id.String())
}
