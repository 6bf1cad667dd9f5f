package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/events"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// EventBridge limits PutEvents to 10 entries per call.
const batchSize = 10

// API is the subset of the EventBridge client the publisher needs.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ API = (*eventbridge.Client)(nil)

// Publisher implements ports.EventBus using AWS EventBridge
type Publisher struct {
	client       API
	eventBusName string
	source       string
	metrics      *observability.Collector
	logger       *zap.Logger
}

var _ ports.EventBus = (*Publisher)(nil)

// NewPublisher creates a publisher. An empty source uses events.SourceWorkbench;
// metrics may be nil.
func NewPublisher(client API, eventBusName, source string, metrics *observability.Collector, logger *zap.Logger) *Publisher {
	if source == "" {
		source = events.SourceWorkbench
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		metrics:      metrics,
		logger:       logger,
	}
}

// Publish sends events in batches of ten.
func (p *Publisher) Publish(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	sent := make([]events.DomainEvent, 0, len(domainEvents))

	for _, event := range domainEvents {
		eventData, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(eventData)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("residuelab:graph/%s", event.GetAggregateID())},
		})
		sent = append(sent, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		p.record(sent, nil, "error")
		if ctxErr := pkgerrors.FromContext(ctx, "publish events"); ctxErr != nil {
			return ctxErr
		}
		return pkgerrors.NewTransportError("failed to publish events to EventBridge", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(sent) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", sent[i].GetEventType()),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		p.record(sent, result.Entries, "")
		return pkgerrors.NewTransportError(fmt.Sprintf("%d events failed to publish", result.FailedEntryCount), nil).
			WithDetail("failed", result.FailedEntryCount)
	}

	p.record(sent, nil, "ok")
	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

// record counts events by outcome. With results, each entry's own outcome is used.
func (p *Publisher) record(sent []events.DomainEvent, results []types.PutEventsResultEntry, status string) {
	if p.metrics == nil {
		return
	}
	for i, e := range sent {
		s := status
		if results != nil {
			s = "ok"
			if i < len(results) && results[i].ErrorCode != nil {
				s = "failed"
			}
		}
		p.metrics.EventsPublished.WithLabelValues(e.GetEventType(), s).Inc()
	}
}
