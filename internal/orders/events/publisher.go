package events

import (
	"context"

	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

// OrderEventPublisher publishes order lifecycle events
type OrderEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewOrderEventPublisher creates a new order event publisher
func NewOrderEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*OrderEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, "order-service", log)
	if err != nil {
		return nil, err
	}

	return &OrderEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishOrderCreated publishes an order created event
func (p *OrderEventPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) {
	if p == nil {
		return
	}
	flowType := ""
	if order.FlowType != nil {
		flowType = string(*order.FlowType)
	}

	data := messaging.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Channel:     string(order.Channel),
		FlowType:    flowType,
		ItemCount:   len(order.Items),
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderCreated, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order created event")
	}
}

// PublishStatusMoved publishes a lifecycle transition event
func (p *OrderEventPublisher) PublishStatusMoved(ctx context.Context, order *domain.Order, from, to domain.Status, operator string) {
	if p == nil {
		return
	}
	data := messaging.OrderStatusMovedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Channel:     string(order.Channel),
		FromStatus:  string(from),
		ToStatus:    string(to),
		Operator:    operator,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderStatusMoved, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish status moved event")
	}
}

// PublishOrderDispatched publishes an order dispatched event
func (p *OrderEventPublisher) PublishOrderDispatched(ctx context.Context, order *domain.Order, movementCount int, operator string) {
	if p == nil {
		return
	}
	data := messaging.OrderDispatchedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Channel:       string(order.Channel),
		MovementCount: movementCount,
		Operator:      operator,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderDispatched, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order dispatched event")
	}
}

// PublishOrderCancelled publishes an order cancelled event
func (p *OrderEventPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order, from domain.Status, reason string) {
	if p == nil {
		return
	}
	data := messaging.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  string(from),
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderCancelled, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order cancelled event")
	}
}

// PublishOrderDeleted publishes an order deleted event
func (p *OrderEventPublisher) PublishOrderDeleted(ctx context.Context, order *domain.Order, forced bool, operator string) {
	if p == nil {
		return
	}
	data := messaging.OrderDeletedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Forced:      forced,
		Operator:    operator,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order deleted event")
	}
}
