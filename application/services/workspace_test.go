package services

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/aggregates"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/domain/events"
	"github.com/yash-217/yash.fun/infrastructure/messaging"
	"github.com/yash-217/yash.fun/infrastructure/persistence/memory"
	storagememory "github.com/yash-217/yash.fun/infrastructure/storage/memory"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

type workspaceFixture struct {
	ws      *Workspace
	bus     *messaging.MemoryBus
	archive *storagememory.Archive
	source  *MockStructureSource
	search  *MockSearchClient
	metrics *observability.Collector
}

func newWorkspaceFixture(t *testing.T) *workspaceFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &workspaceFixture{
		bus:     messaging.NewMemoryBus(64, logger),
		archive: storagememory.NewArchive(),
		source:  new(MockStructureSource),
		search:  new(MockSearchClient),
		metrics: observability.NewCollector("test"),
	}
	orchestrator := NewSearchOrchestrator(f.search, fastSettings(), f.metrics, logger)
	f.ws = NewWorkspace(WorkspaceDeps{
		Fetcher:   NewStructureFetcher(f.source, nil, f.metrics, logger),
		Jobs:      NewSearchJobs(orchestrator, f.bus, JobsConfig{}, logger),
		Snapshots: memory.NewSnapshotRepository(),
		Archive:   f.archive,
		Bus:       f.bus,
		Metrics:   f.metrics,
		Logger:    logger,
	})
	t.Cleanup(f.ws.Close)
	return f
}

func (f *workspaceFixture) eventTypes() []string {
	var out []string
	for _, e := range f.bus.Recent(0) {
		out = append(out, e.GetEventType())
	}
	return out
}

func TestWorkspace_AddDropBonds(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)

	a, err := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Vec(0, 0, 0))
	require.NoError(t, err)
	b, err := f.ws.Add(ctx, valueobjects.Glycine, valueobjects.Vec(20, 0, 0))
	require.NoError(t, err)

	result, err := f.ws.Drop(ctx, b.ID(), valueobjects.Vec(2, 1, 0))
	require.NoError(t, err)
	assert.True(t, result.Bonded)
	require.NotNil(t, result.NeighborID)
	assert.True(t, result.NeighborID.Equals(a.ID()))

	moved, err := f.ws.Residue(b.ID())
	require.NoError(t, err)
	assert.InDelta(t, 3.8, moved.Position().DistanceTo(a.Position()), 1e-9)
	assert.True(t, moved.IsConnectedTo(a.ID()))

	assert.Equal(t, []string{
		events.TypeResidueAdded,
		events.TypeResidueAdded,
		events.TypeResidueUpdated,
		events.TypeResidueConnected,
	}, f.eventTypes())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Snaps.WithLabelValues("bonded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Residues))
}

func TestWorkspace_DropFarAwayDoesNotBond(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)

	_, err := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Vec(0, 0, 0))
	require.NoError(t, err)
	b, err := f.ws.Add(ctx, valueobjects.Glycine, valueobjects.Vec(20, 0, 0))
	require.NoError(t, err)

	result, err := f.ws.Drop(ctx, b.ID(), valueobjects.Vec(10, 0, 0))
	require.NoError(t, err)
	assert.False(t, result.Bonded)

	moved, _ := f.ws.Residue(b.ID())
	assert.True(t, moved.Position().Equals(valueobjects.Vec(10, 0, 0)))
	assert.Nil(t, moved.ConnectedTo())
}

func TestWorkspace_ValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)
	missing := valueobjects.NewResidueID()

	a, err := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())
	require.NoError(t, err)

	_, err = f.ws.Add(ctx, valueobjects.AminoAcid("XYZ"), valueobjects.Origin())
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Vec(math.NaN(), 0, 0))
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.ws.Update(ctx, missing, aggregates.ResiduePatch{})
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(f.ws.Remove(ctx, missing)))
	assert.True(t, pkgerrors.IsNotFound(f.ws.Connect(ctx, a.ID(), missing)))
	assert.True(t, pkgerrors.IsNotFound(f.ws.Connect(ctx, missing, a.ID())))
	assert.True(t, pkgerrors.IsValidation(f.ws.Connect(ctx, a.ID(), a.ID())))
	assert.True(t, pkgerrors.IsNotFound(f.ws.Select(&missing)))
	_, err = f.ws.Drop(ctx, missing, valueobjects.Origin())
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.Equal(t, []string{events.TypeResidueAdded}, f.eventTypes(), "failed operations raise no events")
}

func TestWorkspace_RemoveClearsIncomingBondsAndSelection(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)

	a, _ := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())
	b, _ := f.ws.Add(ctx, valueobjects.Glycine, valueobjects.Vec(3.8, 0, 0))
	c, _ := f.ws.Add(ctx, valueobjects.Serine, valueobjects.Vec(0, 3.8, 0))
	require.NoError(t, f.ws.Connect(ctx, b.ID(), a.ID()))
	require.NoError(t, f.ws.Connect(ctx, c.ID(), a.ID()))
	id := a.ID()
	require.NoError(t, f.ws.Select(&id))

	require.NoError(t, f.ws.Remove(ctx, a.ID()))

	view := f.ws.View()
	require.Len(t, view.Residues, 2)
	for _, r := range view.Residues {
		assert.Nil(t, r.ConnectedTo())
	}
	assert.Nil(t, view.Selected)
}

func TestWorkspace_UpdatePatch(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)
	a, _ := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())

	aa := valueobjects.Tryptophan
	pos := valueobjects.Vec(1, 2, 3)
	updated, err := f.ws.Update(ctx, a.ID(), aggregates.ResiduePatch{AminoAcid: &aa, Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Tryptophan, updated.AminoAcid())
	assert.True(t, updated.Position().Equals(pos))

	before := f.ws.Generation()
	_, err = f.ws.Update(ctx, a.ID(), aggregates.ResiduePatch{})
	require.NoError(t, err)
	assert.Equal(t, before, f.ws.Generation(), "empty patch is a no-op")
}

func TestWorkspace_UpdateAxesConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)
	a, _ := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())

	values := []float64{1, 2, 3}
	var wg sync.WaitGroup
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var patch aggregates.ResiduePatch
			switch i {
			case 0:
				patch.X = &values[0]
			case 1:
				patch.Y = &values[1]
			case 2:
				patch.Z = &values[2]
			}
			_, err := f.ws.Update(ctx, a.ID(), patch)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.ws.Residue(a.ID())
	require.NoError(t, err)
	assert.True(t, got.Position().Equals(valueobjects.Vec(1, 2, 3)), "no axis update is lost: %v", got.Position())

	nan := math.NaN()
	_, err = f.ws.Update(ctx, a.ID(), aggregates.ResiduePatch{Y: &nan})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestWorkspace_LoadStructureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)
	a, _ := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())
	id := a.ID()
	require.NoError(t, f.ws.Select(&id))

	f.source.On("FetchStructure", mock.Anything, "2BAD").Return("HEADER only\nEND\n", nil)
	f.source.On("FetchStructure", mock.Anything, "1ABC").Return(offCentre, nil)

	_, err := f.ws.LoadStructure(ctx, "2BAD")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeParse))
	assert.Len(t, f.ws.View().Residues, 1, "failed load leaves the graph alone")

	outcome, err := f.ws.LoadStructure(ctx, "1ABC")
	require.NoError(t, err)
	assert.Len(t, outcome.Residues, 3)
	require.NotNil(t, outcome.Offset)

	view := f.ws.View()
	assert.Len(t, view.Residues, 3)
	assert.Nil(t, view.Selected)
	assert.Equal(t, outcome.Generation, view.Generation)

	types := f.eventTypes()
	assert.Equal(t, []string{events.TypeGraphReplaced, events.TypeStructureLoaded}, types[len(types)-2:])
}

func TestWorkspace_ImportAndExport(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)

	export := f.ws.Export()
	assert.False(t, export.IsValid)
	assert.NotEmpty(t, export.Warnings)

	_, err := f.ws.ImportText(ctx, "nothing here")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeParse))

	outcome, err := f.ws.ImportText(ctx, offCentre)
	require.NoError(t, err)
	assert.Len(t, outcome.Residues, 3)
	assert.Nil(t, outcome.Offset, "imported text keeps its coordinates")

	export = f.ws.Export()
	assert.True(t, export.IsValid)
	assert.Contains(t, export.Text, "  10.000  20.000  30.000")
}

func TestWorkspace_Snapshots(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)

	a, _ := f.ws.Add(ctx, valueobjects.Alanine, valueobjects.Origin())
	b, _ := f.ws.Add(ctx, valueobjects.Glycine, valueobjects.Vec(3.8, 0, 0))
	require.NoError(t, f.ws.Connect(ctx, b.ID(), a.ID()))

	saved, err := f.ws.SaveSnapshot(ctx, "dipeptide")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.ResidueCount())
	assert.NotEmpty(t, saved.ArchiveKey)
	text, err := f.archive.Get(ctx, saved.ArchiveKey)
	require.NoError(t, err)
	assert.Contains(t, text, "GLY")

	_, err = f.ws.SaveSnapshot(ctx, "dipeptide")
	assert.True(t, pkgerrors.IsConflict(err))
	_, err = f.ws.SaveSnapshot(ctx, "  ")
	assert.True(t, pkgerrors.IsValidation(err))

	require.NoError(t, f.ws.Clear(ctx))
	assert.Empty(t, f.ws.View().Residues)

	restored, err := f.ws.RestoreSnapshot(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, restored.Residues, 2)
	assert.True(t, restored.Residues[0].ID().Equals(a.ID()), "snapshots keep identities")
	assert.True(t, restored.Residues[1].IsConnectedTo(a.ID()), "snapshots keep bonds")

	list, err := f.ws.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.ws.DeleteSnapshot(ctx, saved.ID))
	_, err = f.ws.RestoreSnapshot(ctx, saved.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, f.eventTypes(), events.TypeSnapshotSaved)
}

func TestWorkspace_EmptyGraphSavesWithoutArchive(t *testing.T) {
	f := newWorkspaceFixture(t)
	saved, err := f.ws.SaveSnapshot(context.Background(), "blank")
	require.NoError(t, err)
	assert.Empty(t, saved.ArchiveKey)
	assert.Equal(t, 0, f.archive.Len())
}

func TestWorkspace_SearchStaleness(t *testing.T) {
	ctx := context.Background()
	f := newWorkspaceFixture(t)
	for _, r := range chain() {
		_, err := f.ws.Add(ctx, r.AminoAcid(), r.Position())
		require.NoError(t, err)
	}

	f.search.On("SubmitTicket", mock.Anything, mock.Anything).Return("t", nil)
	f.search.On("TicketStatus", mock.Anything, "t").Return(&ports.TicketStatus{
		Status: "COMPLETE",
		Result: json.RawMessage(twoAlignments),
	}, nil)

	id, err := f.ws.StartSearch()
	require.NoError(t, err)
	_, err = f.ws.jobs.Wait(waitCtx(t), id)
	require.NoError(t, err)

	view, err := f.ws.Search(id)
	require.NoError(t, err)
	assert.Equal(t, SearchCompleted, view.State)
	assert.False(t, view.Stale)

	_, err = f.ws.Add(ctx, valueobjects.Proline, valueobjects.Vec(0, 10, 0))
	require.NoError(t, err)

	view, err = f.ws.Search(id)
	require.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Len(t, view.Matches, 2, "stale results are reported, not discarded")
}

func TestWorkspace_SearchEmptyGraph(t *testing.T) {
	f := newWorkspaceFixture(t)
	_, err := f.ws.StartSearch()
	assert.True(t, pkgerrors.IsValidation(err))
	f.search.AssertNotCalled(t, "SubmitTicket", mock.Anything, mock.Anything)
}

func TestWorkspace_SnapSettings(t *testing.T) {
	f := newWorkspaceFixture(t)
	f.ws.UpdateSnapSettings(4.0, 6.0)
	bond, threshold := f.ws.SnapSettings()
	assert.Equal(t, 4.0, bond)
	assert.Equal(t, 6.0, threshold)

	f.ws.UpdateSnapSettings(0, -1)
	bond, threshold = f.ws.SnapSettings()
	assert.Equal(t, 4.0, bond, "non-positive values are ignored")
	assert.Equal(t, 6.0, threshold)
}
