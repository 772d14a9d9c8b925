package events

import (
	"context"

	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

// MarketplaceEventPublisher publishes marketplace intake events
type MarketplaceEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewMarketplaceEventPublisher creates a new marketplace event publisher
func NewMarketplaceEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*MarketplaceEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeMarketplaceEvents, "marketplace-sync", log)
	if err != nil {
		return nil, err
	}

	return &MarketplaceEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishOrderImported publishes an order imported event
func (p *MarketplaceEventPublisher) PublishOrderImported(ctx context.Context, order *domain.Order) {
	if p == nil {
		return
	}
	shipmentID := ""
	if order.ShipmentID != nil {
		shipmentID = *order.ShipmentID
	}
	data := messaging.MarketplaceOrderImportedEvent{
		OrderID:    order.ID,
		ShipmentID: shipmentID,
		ItemCount:  len(order.Items),
	}

	if err := p.publisher.Publish(ctx, messaging.EventMarketplaceOrderImported, data); err != nil {
		p.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order imported event")
	}
}
