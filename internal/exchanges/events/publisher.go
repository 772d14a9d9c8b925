package events

import (
	"context"

	"github.com/pinoerp/wms-backend/internal/exchanges/repository"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

// ExchangeEventPublisher publishes exchange lifecycle events
type ExchangeEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewExchangeEventPublisher creates a new exchange event publisher
func NewExchangeEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*ExchangeEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeExchangeEvents, "exchange-service", log)
	if err != nil {
		return nil, err
	}

	return &ExchangeEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishRegistered publishes an exchange registered event
func (p *ExchangeEventPublisher) PublishRegistered(ctx context.Context, exchange *repository.Exchange) {
	if p == nil {
		return
	}
	data := messaging.ExchangeRegisteredEvent{
		ExchangeID:      exchange.ID,
		OriginalOrderID: exchange.OriginalOrderID,
		Modality:        string(exchange.Modality),
		LineCount:       len(exchange.Lines),
	}

	if err := p.publisher.Publish(ctx, messaging.EventExchangeRegistered, data); err != nil {
		p.logger.Error().Err(err).Str("exchange_id", exchange.ID).Msg("failed to publish exchange registered event")
	}
}

// PublishReturnReceived publishes a return received event
func (p *ExchangeEventPublisher) PublishReturnReceived(ctx context.Context, exchangeID, condition string, restocked bool, satelliteOrder string) {
	if p == nil {
		return
	}
	data := messaging.ExchangeReturnReceivedEvent{
		ExchangeID:     exchangeID,
		Condition:      condition,
		Restocked:      restocked,
		SatelliteOrder: satelliteOrder,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExchangeReturnReceived, data); err != nil {
		p.logger.Error().Err(err).Str("exchange_id", exchangeID).Msg("failed to publish return received event")
	}
}
