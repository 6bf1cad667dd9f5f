package memory

import (
	"context"
	"sync"

	"github.com/yash-217/yash.fun/application/ports"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Archive keeps exported structures in a map.
type Archive struct {
	mu      sync.RWMutex
	objects map[string]string
}

var _ ports.StructureArchive = (*Archive)(nil)

func NewArchive() *Archive {
	return &Archive{objects: make(map[string]string)}
}

// Put stores text under key, replacing any previous value.
func (a *Archive) Put(ctx context.Context, key, text string) (string, error) {
	if key == "" {
		return "", pkgerrors.NewValidationError("archive key cannot be empty")
	}
	a.mu.Lock()
	a.objects[key] = text
	a.mu.Unlock()
	return "memory://" + key, nil
}

func (a *Archive) Get(ctx context.Context, key string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	text, ok := a.objects[key]
	if !ok {
		return "", pkgerrors.NewNotFoundError("archived structure").WithDetail("key", key)
	}
	return text, nil
}

// Len returns the number of stored objects.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}
