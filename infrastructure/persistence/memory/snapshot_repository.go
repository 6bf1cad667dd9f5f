package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// SnapshotRepository provides an in-memory implementation of ports.SnapshotRepository
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*entities.Snapshot
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates an empty repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[string]*entities.Snapshot)}
}

// Save stores a copy of snapshot. Saving an existing ID or name is a conflict.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return pkgerrors.NewValidationError("invalid snapshot")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[snapshot.ID]; exists {
		return pkgerrors.NewConflictError("snapshot already exists").WithDetail("id", snapshot.ID)
	}
	for _, s := range r.snapshots {
		if s.Name == snapshot.Name {
			return pkgerrors.NewConflictError("snapshot name already in use").WithDetail("name", snapshot.Name)
		}
	}

	r.snapshots[snapshot.ID] = cloneSnapshot(snapshot, true)
	return nil
}

// Get retrieves a snapshot by ID
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*entities.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.snapshots[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
	}
	return cloneSnapshot(s, true), nil
}

// List returns snapshot headers, newest first, without residues.
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	r.mu.RLock()
	out := make([]*entities.Snapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		out = append(out, cloneSnapshot(s, false))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[id]; !exists {
		return pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
	}
	delete(r.snapshots, id)
	return nil
}

func cloneSnapshot(s *entities.Snapshot, withResidues bool) *entities.Snapshot {
	c := *s
	c.Residues = nil
	if withResidues {
		c.Residues = make([]*entities.Residue, 0, len(s.Residues))
		for _, res := range s.Residues {
			c.Residues = append(c.Residues, res.Clone())
		}
	}
	return &c
}
