// Package sqlstore keeps snapshots in a SQL database through database/sql.
// SQLite (modernc.org/sqlite, driver "sqlite") suits a single node; Postgres
// (pgx stdlib, driver "pgx") suits a shared deployment.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/infrastructure/persistence/record"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Dialect names a supported database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const defaultSQLitePath = "residuelab.db"

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	graph_id      TEXT NOT NULL,
	created_at    BIGINT NOT NULL,
	archive_key   TEXT NOT NULL,
	residue_count INTEGER NOT NULL,
	residues      TEXT NOT NULL
)`

// SnapshotRepository implements ports.SnapshotRepository on a SQL table.
// Residues are stored as a JSON array of record.Residue.
type SnapshotRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// Open connects to dsn and creates the table when missing. For SQLite dsn
// is a file path; an empty path uses residuelab.db.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SnapshotRepository, error) {
	var driver string
	switch dialect {
	case SQLite:
		driver = "sqlite"
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case Postgres:
		driver = "pgx"
		if dsn == "" {
			return nil, errors.New("postgres requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer keeps SQLite from reporting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &SnapshotRepository{db: db, dialect: dialect}, nil
}

// Close releases the connection pool.
func (r *SnapshotRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save inserts snapshot. An existing ID or name is a conflict.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return pkgerrors.NewValidationError("invalid snapshot")
	}
	residues, err := json.Marshal(record.FromResidues(snapshot.Residues))
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode snapshot").WithCause(err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`INSERT INTO snapshots
		(id, name, graph_id, created_at, archive_key, residue_count, residues)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		snapshot.ID, snapshot.Name, snapshot.GraphID, snapshot.CreatedAt.UnixNano(),
		snapshot.ArchiveKey, snapshot.ResidueCount(), string(residues))
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.NewConflictError("snapshot id or name already in use").
				WithDetail("id", snapshot.ID).
				WithDetail("name", snapshot.Name)
		}
		return classify(ctx, "save snapshot", err)
	}
	return nil
}

// Get loads a snapshot with its residues.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*entities.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT id, name, graph_id, created_at, archive_key, residues
		FROM snapshots WHERE id = ?`), id)

	var (
		s        entities.Snapshot
		created  int64
		residues string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.GraphID, &created, &s.ArchiveKey, &residues); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
		}
		return nil, classify(ctx, "load snapshot", err)
	}
	s.CreatedAt = time.Unix(0, created).UTC()

	var records []record.Residue
	if err := json.Unmarshal([]byte(residues), &records); err != nil {
		return nil, pkgerrors.NewInternalError("corrupt snapshot").WithCause(err)
	}
	res, err := record.ToResidues(records)
	if err != nil {
		return nil, pkgerrors.NewInternalError("corrupt snapshot").WithCause(err)
	}
	s.Residues = res
	return &s, nil
}

// List returns snapshot headers, newest first, without residues.
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	query := `SELECT id, name, graph_id, created_at, archive_key FROM snapshots
		ORDER BY created_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, classify(ctx, "list snapshots", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entities.Snapshot, 0)
	for rows.Next() {
		var (
			s       entities.Snapshot
			created int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.GraphID, &created, &s.ArchiveKey); err != nil {
			return nil, classify(ctx, "list snapshots", err)
		}
		s.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, "list snapshots", err)
	}
	return out, nil
}

// Delete removes a snapshot.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM snapshots WHERE id = ?`), id)
	if err != nil {
		return classify(ctx, "delete snapshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(ctx, "delete snapshot", err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *SnapshotRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func classify(ctx context.Context, operation string, err error) error {
	if ctxErr := pkgerrors.FromContext(ctx, operation); ctxErr != nil {
		return ctxErr
	}
	return pkgerrors.NewInternalError("failed to " + operation).WithCause(err)
}
