package events

import (
	"context"

	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

// MovementEventPublisher publishes movement ledger events
type MovementEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewMovementEventPublisher creates a new movement event publisher
func NewMovementEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*MovementEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeMovementEvents, source, log)
	if err != nil {
		return nil, err
	}

	return &MovementEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMovementsEmitted publishes a movements emitted event
func (p *MovementEventPublisher) PublishMovementsEmitted(ctx context.Context, orderID int64, orderNumber string, count int) {
	if p == nil {
		return
	}
	data := messaging.MovementsEmittedEvent{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Count:       count,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementsEmitted, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to publish movements emitted event")
	}
}

// PublishExportEligible publishes an export eligible event for a channel group
func (p *MovementEventPublisher) PublishExportEligible(ctx context.Context, group, triggeredBy string) {
	if p == nil {
		return
	}
	data := messaging.ExportEligibleEvent{
		Group:       group,
		TriggeredBy: triggeredBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportEligible, data); err != nil {
		p.logger.Error().Err(err).Str("group", group).Msg("failed to publish export eligible event")
	}
}

// PublishExportCompleted publishes an export completed event
func (p *MovementEventPublisher) PublishExportCompleted(ctx context.Context, batch string, count int, durationSeconds float64) {
	if p == nil {
		return
	}
	data := messaging.ExportCompletedEvent{
		Count:    count,
		Batch:    batch,
		Duration: durationSeconds,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("batch", batch).Msg("failed to publish export completed event")
	}
}

// PublishExportReopened publishes an export reopened event
func (p *MovementEventPublisher) PublishExportReopened(ctx context.Context, ids []int64, operator, reason string) {
	if p == nil {
		return
	}
	data := messaging.ExportReopenedEvent{
		MovementIDs: ids,
		Operator:    operator,
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportReopened, data); err != nil {
		p.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to publish export reopened event")
	}
}
