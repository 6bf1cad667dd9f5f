package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/events"
	"github.com/yash-217/yash.fun/infrastructure/messaging"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSearchJobs_Completes(t *testing.T) {
	client := new(MockSearchClient)
	client.On("SubmitTicket", mock.Anything, mock.Anything).Return("ticket-9", nil)
	client.On("TicketStatus", mock.Anything, "ticket-9").Return(&ports.TicketStatus{
		Status: "COMPLETE",
		Result: json.RawMessage(twoAlignments),
	}, nil)

	bus := messaging.NewMemoryBus(8, zap.NewNop())
	jobs := NewSearchJobs(NewSearchOrchestrator(client, fastSettings(), nil, zap.NewNop()), bus, JobsConfig{}, zap.NewNop())
	defer jobs.Close()

	id, err := jobs.Start(chain(), 7)
	require.NoError(t, err)

	view, err := jobs.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, SearchCompleted, view.State)
	assert.Equal(t, "ticket-9", view.TicketID)
	assert.Len(t, view.Matches, 2)
	assert.Equal(t, int64(7), view.Generation)
	assert.NotNil(t, view.FinishedAt)
	assert.Nil(t, view.Error)

	recent := bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeSearchCompleted, recent[0].GetEventType())
	assert.Equal(t, id, recent[0].GetAggregateID())
}

func TestSearchJobs_CancelStopsPolling(t *testing.T) {
	client := new(MockSearchClient)
	client.On("SubmitTicket", mock.Anything, mock.Anything).Return("t", nil)
	client.On("TicketStatus", mock.Anything, "t").Return(&ports.TicketStatus{Status: "PENDING"}, nil)

	settings := fastSettings()
	settings.PollInterval = 10 * time.Millisecond
	bus := messaging.NewMemoryBus(8, zap.NewNop())
	jobs := NewSearchJobs(NewSearchOrchestrator(client, settings, nil, zap.NewNop()), bus, JobsConfig{}, zap.NewNop())
	defer jobs.Close()

	id, err := jobs.Start(chain(), 1)
	require.NoError(t, err)
	require.NoError(t, jobs.Cancel(id))

	view, err := jobs.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, SearchCancelled, view.State)
	require.NotNil(t, view.Error)
	assert.Equal(t, pkgerrors.ErrorTypeCanceled, view.Error.Type)

	recent := bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeSearchFailed, recent[0].GetEventType())
}

func TestSearchJobs_RejectsInvalidStructure(t *testing.T) {
	client := new(MockSearchClient)
	jobs := NewSearchJobs(NewSearchOrchestrator(client, fastSettings(), nil, zap.NewNop()), nil, JobsConfig{}, zap.NewNop())
	defer jobs.Close()

	_, err := jobs.Start(nil, 0)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, jobs.List())
	client.AssertNotCalled(t, "SubmitTicket", mock.Anything, mock.Anything)
}

func TestSearchJobs_LimitsRunningJobs(t *testing.T) {
	client := new(MockSearchClient)
	client.On("SubmitTicket", mock.Anything, mock.Anything).Return("t", nil)
	client.On("TicketStatus", mock.Anything, "t").Return(&ports.TicketStatus{Status: "PENDING"}, nil)

	settings := fastSettings()
	settings.PollInterval = 10 * time.Millisecond
	jobs := NewSearchJobs(NewSearchOrchestrator(client, settings, nil, zap.NewNop()), nil, JobsConfig{MaxJobs: 1}, zap.NewNop())

	_, err := jobs.Start(chain(), 1)
	require.NoError(t, err)

	_, err = jobs.Start(chain(), 1)
	assert.True(t, pkgerrors.IsConflict(err))

	jobs.Close()
	_, err = jobs.Start(chain(), 1)
	assert.True(t, pkgerrors.IsConflict(err), "closed registry accepts nothing")
}

func TestSearchJobs_PrunesFinishedJobs(t *testing.T) {
	client := new(MockSearchClient)
	client.On("SubmitTicket", mock.Anything, mock.Anything).Return("", pkgerrors.NewTransportError("down", nil))

	jobs := NewSearchJobs(NewSearchOrchestrator(client, fastSettings(), nil, zap.NewNop()), nil, JobsConfig{Retention: time.Minute}, zap.NewNop())
	defer jobs.Close()

	id, err := jobs.Start(chain(), 1)
	require.NoError(t, err)
	view, err := jobs.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, SearchFailed, view.State)
	assert.Equal(t, pkgerrors.ErrorTypeTransport, view.Error.Type)

	jobs.mu.Lock()
	jobs.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	jobs.mu.Unlock()

	assert.Empty(t, jobs.List())
	_, err = jobs.Get(id)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(jobs.Cancel(id)))
}
