package events

import (
	"context"

	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

// PicklistEventPublisher publishes pick batch events
type PicklistEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPicklistEventPublisher creates a new picklist event publisher
func NewPicklistEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PicklistEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, "picklist-service", log)
	if err != nil {
		return nil, err
	}

	return &PicklistEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishBatchCreated publishes a batch created event
func (p *PicklistEventPublisher) PublishBatchCreated(ctx context.Context, data messaging.BatchCreatedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch created event")
	}
}
