package eventbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/domain/events"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

type MockEventBridge struct {
	mock.Mock
}

func (m *MockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func residueEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewResidueAdded("graph-1", int64(i+1), "r", "ALA", 0, 0, 0))
	}
	return out
}

func TestPublisher_Batches(t *testing.T) {
	client := new(MockEventBridge)
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.AnythingOfType("*eventbridge.PutEventsInput")).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*eventbridge.PutEventsInput)
			sizes = append(sizes, len(in.Entries))
			assert.Equal(t, "bus", aws.ToString(in.Entries[0].EventBusName))
			assert.Equal(t, events.SourceWorkbench, aws.ToString(in.Entries[0].Source))
			assert.Equal(t, events.TypeResidueAdded, aws.ToString(in.Entries[0].DetailType))
			assert.Contains(t, aws.ToString(in.Entries[0].Detail), `"aggregateId":"graph-1"`)
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	metrics := observability.NewCollector("test")
	p := NewPublisher(client, "bus", "", metrics, zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), residueEvents(23)))

	assert.Equal(t, []int{10, 10, 3}, sizes)
	assert.Equal(t, 23.0, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeResidueAdded, "ok")))
	client.AssertExpectations(t)
}

func TestPublisher_EmptyIsNoop(t *testing.T) {
	client := new(MockEventBridge)
	p := NewPublisher(client, "bus", "", nil, zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), nil))
	client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("partial failure", func(t *testing.T) {
		client := new(MockEventBridge)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("1")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")},
			},
		}, nil)

		metrics := observability.NewCollector("test")
		p := NewPublisher(client, "bus", "custom", metrics, zap.NewNop())
		err := p.Publish(context.Background(), residueEvents(2))

		require.Error(t, err)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTransport))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeResidueAdded, "failed")))
	})

	t.Run("call fails", func(t *testing.T) {
		client := new(MockEventBridge)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

		p := NewPublisher(client, "bus", "", nil, zap.NewNop())
		err := p.Publish(context.Background(), residueEvents(1))
		assert.True(t, pkgerrors.IsRetryable(err))
	})
}
