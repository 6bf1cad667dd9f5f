package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

func openSQLite(t *testing.T) *SnapshotRepository {
	t.Helper()
	repo, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "db", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newSnapshot(t *testing.T, name string, created time.Time) *entities.Snapshot {
	t.Helper()
	a := entities.NewResidue(valueobjects.Alanine, valueobjects.Vec(0, 0, 0))
	b := entities.NewResidue(valueobjects.Glycine, valueobjects.Vec(3.8, 0, 0))
	rot, err := valueobjects.NewRotation(0, 0, 0, 1)
	require.NoError(t, err)
	b.SetRotation(rot)
	b.ConnectTo(a.ID())
	s, err := entities.NewSnapshot(name, "graph-1", []*entities.Residue{a, b})
	require.NoError(t, err)
	s.CreatedAt = created
	return s
}

func TestSnapshotRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	s := newSnapshot(t, "hairpin", created)
	s.ArchiveKey = "structures/hairpin.pdb"

	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hairpin", got.Name)
	assert.Equal(t, "graph-1", got.GraphID)
	assert.Equal(t, "structures/hairpin.pdb", got.ArchiveKey)
	assert.True(t, got.CreatedAt.Equal(created))

	require.Len(t, got.Residues, 2)
	assert.True(t, got.Residues[0].ID().Equals(s.Residues[0].ID()))
	assert.True(t, got.Residues[1].IsConnectedTo(got.Residues[0].ID()))
	assert.Equal(t, valueobjects.Glycine, got.Residues[1].AminoAcid())
	assert.InDelta(t, 3.8, got.Residues[1].Position().X(), 1e-12)
	assert.InDelta(t, 1.0, got.Residues[1].Rotation().Z(), 1e-12)
}

func TestSnapshotRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)
	s := newSnapshot(t, "helix", time.Now())
	require.NoError(t, repo.Save(ctx, s))

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "duplicate id", err: repo.Save(ctx, s), check: pkgerrors.IsConflict},
		{name: "duplicate name", err: repo.Save(ctx, newSnapshot(t, "helix", time.Now())), check: pkgerrors.IsConflict},
		{name: "nil snapshot", err: repo.Save(ctx, nil), check: pkgerrors.IsValidation},
		{name: "missing delete", err: repo.Delete(ctx, "nope"), check: pkgerrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, tt.check(tt.err), "unexpected error %v", tt.err)
		})
	}

	_, err := repo.Get(ctx, "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSnapshotRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"first", "second", "third"} {
		s := newSnapshot(t, name, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Save(ctx, s))
		ids = append(ids, s.ID)
	}

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "second", list[1].Name)
	assert.Empty(t, list[0].Residues)

	require.NoError(t, repo.Delete(ctx, ids[2]))
	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Name)
}

func TestSnapshotRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	repo, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	s := newSnapshot(t, "kept", time.Now())
	require.NoError(t, repo.Save(ctx, s))
	require.NoError(t, repo.Close())

	reopened, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
}

func TestRebind(t *testing.T) {
	pg := &SnapshotRepository{dialect: Postgres}
	lite := &SnapshotRepository{dialect: SQLite}
	q := `SELECT id FROM snapshots WHERE id = ? AND name = ?`

	assert.Equal(t, `SELECT id FROM snapshots WHERE id = $1 AND name = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "x")
	assert.Error(t, err)

	_, err = Open(context.Background(), Postgres, "")
	assert.Error(t, err)
}
