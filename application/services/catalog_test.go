package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/infrastructure/persistence/memory"
	storagememory "github.com/yash-217/yash.fun/infrastructure/storage/memory"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

type catalogFixture struct {
	snapshots ports.SnapshotRepository
	archive   *storagememory.Archive
	source    *MockStructureSource
	search    *MockSearchClient
	metrics   *observability.Collector
}

func newCatalogFixture() *catalogFixture {
	return &catalogFixture{
		snapshots: memory.NewSnapshotRepository(),
		archive:   storagememory.NewArchive(),
		source:    new(MockStructureSource),
		search:    new(MockSearchClient),
		metrics:   observability.NewCollector("test"),
	}
}

// instance builds a fresh catalog over the fixture's shared stores, the
// way each execution environment builds its own.
func (f *catalogFixture) instance() *Catalog {
	logger := zap.NewNop()
	return NewCatalog(CatalogDeps{
		Orchestrator: NewSearchOrchestrator(f.search, fastSettings(), f.metrics, logger),
		Fetcher:      NewStructureFetcher(f.source, nil, f.metrics, logger),
		Snapshots:    f.snapshots,
		Archive:      f.archive,
		Metrics:      f.metrics,
		Logger:       logger,
	})
}

func TestCatalog_ServesSnapshotsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	f.source.On("FetchStructure", mock.Anything, "1ABC").Return(offCentre, nil).Once()
	f.search.On("SubmitTicket", mock.Anything, mock.MatchedBy(func(q ports.SearchQuery) bool {
		return strings.Contains(q.PDB, "CA  SER A   3")
	})).Return("ticket-1", nil).Once()
	f.search.On("TicketStatus", mock.Anything, "ticket-1").Return(&ports.TicketStatus{
		Status: "COMPLETE",
		Result: json.RawMessage(twoAlignments),
	}, nil).Once()

	first, second := f.instance(), f.instance()

	saved, err := first.ImportStructure(ctx, "crambin", "1ABC")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.ResidueCount())
	assert.Equal(t, "1ABC", saved.GraphID)
	assert.Equal(t, saved.ID+".pdb", saved.ArchiveKey)
	assert.Equal(t, 1, f.archive.Len())

	list, err := second.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	got, err := second.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got.Residues, 3)
	assert.InDelta(t, 0, got.Residues[1].Position().X()+got.Residues[0].Position().X()+got.Residues[2].Position().X(), 1e-9,
		"fetched structures are stored centred")

	export, err := second.Export(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, export.IsValid)
	assert.Contains(t, export.Text, "CA  GLY A   2")

	outcome, err := second.SearchSnapshot(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", outcome.TicketID)
	require.Len(t, outcome.Matches, 2)
	assert.Equal(t, int64(0), outcome.Generation)

	require.NoError(t, second.Delete(ctx, saved.ID))
	_, err = first.Get(ctx, saved.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = first.SearchSnapshot(ctx, saved.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Snapshots.WithLabelValues("save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Snapshots.WithLabelValues("delete", "ok")))
	f.source.AssertExpectations(t)
	f.search.AssertExpectations(t)
}

func TestCatalog_ImportText(t *testing.T) {
	ctx := context.Background()
	c := newCatalogFixture().instance()

	saved, err := c.ImportText(ctx, "offset", offCentre)
	require.NoError(t, err)
	got, err := c.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got.Residues, 3)
	assert.Equal(t, 10.0, got.Residues[0].Position().X(), "pasted text keeps its coordinates")

	_, err = c.ImportText(ctx, "offset", offCentre)
	assert.True(t, pkgerrors.IsConflict(err))

	tests := []struct {
		name    string
		snap    string
		text    string
		errType pkgerrors.ErrorType
	}{
		{"no residues", "empty", "HEADER    NOTHING\nEND\n", pkgerrors.ErrorTypeParse},
		{"blank name", " ", offCentre, pkgerrors.ErrorTypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ImportText(ctx, tt.snap, tt.text)
			assert.True(t, pkgerrors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestCatalog_SearchText(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	f.search.On("SubmitTicket", mock.Anything, mock.Anything).Return("ticket-2", nil).Once()
	f.search.On("TicketStatus", mock.Anything, "ticket-2").Return(&ports.TicketStatus{
		Status: "COMPLETE",
		Result: json.RawMessage(twoAlignments),
	}, nil).Once()
	c := f.instance()

	_, err := c.SearchText(ctx, "<html>no</html>")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeParse))

	outcome, err := c.SearchText(ctx, offCentre)
	require.NoError(t, err)
	assert.Equal(t, "ticket-2", outcome.TicketID)
	assert.Len(t, outcome.Matches, 2)
}

func TestCatalog_Unconfigured(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(CatalogDeps{})

	_, err := c.ImportStructure(ctx, "a", "1ABC")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
	_, err = c.List(ctx, 10)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
	_, err = c.SearchText(ctx, offCentre)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
}
