package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/domain/events"
)

func TestMemoryBus_Delivery(t *testing.T) {
	bus := NewMemoryBus(10, zap.NewNop())

	var added, all []string
	bus.Subscribe(events.TypeResidueAdded, func(ctx context.Context, e events.DomainEvent) error {
		added = append(added, e.GetEventType())
		return errors.New("handler failures are logged only")
	})
	bus.Subscribe(AllEvents, func(ctx context.Context, e events.DomainEvent) error {
		all = append(all, e.GetEventType())
		return nil
	})

	err := bus.Publish(context.Background(), []events.DomainEvent{
		events.NewResidueAdded("g", 1, "r1", "ALA", 0, 0, 0),
		events.NewGraphCleared("g", 2, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeResidueAdded}, added)
	assert.Equal(t, []string{events.TypeResidueAdded, events.TypeGraphCleared}, all)
}

func TestMemoryBus_HistoryIsBounded(t *testing.T) {
	bus := NewMemoryBus(2, zap.NewNop())
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), []events.DomainEvent{events.NewGraphCleared("g", i, 0)}))
	}

	recent := bus.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].GetVersion())
	assert.Equal(t, int64(3), recent[1].GetVersion())
	assert.Len(t, bus.Recent(1), 1)
}

type failingBus struct{ err error }

func (f failingBus) Publish(context.Context, []events.DomainEvent) error { return f.err }

func TestMultiBus(t *testing.T) {
	mem := NewMemoryBus(4, zap.NewNop())
	boom := errors.New("boom")
	multi := MultiBus{failingBus{boom}, mem, NopBus{}}

	err := multi.Publish(context.Background(), []events.DomainEvent{events.NewGraphCleared("g", 1, 0)})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.Recent(0), 1, "later buses still receive events")
}
