package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/exchanges/events"
	"github.com/pinoerp/wms-backend/internal/exchanges/repository"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	movementsservice "github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderevents "github.com/pinoerp/wms-backend/internal/orders/events"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// satellitePrefix marks replacement orders generated by an exchange
const satellitePrefix = "EXC-"

// RegisterLine is one returned/replacement pair for registration
type RegisterLine struct {
	ReturnedSKU    string
	ReturnedQty    int
	ReplacementSKU string
	ReplacementQty int
}

// ExchangeService owns the return-and-replace sub-flow
type ExchangeService struct {
	db             *database.DB
	exchangeRepo   *repository.ExchangeRepository
	orderRepo      *orderrepo.OrderRepository
	movementRepo   *movementsrepo.MovementRepository
	publisher      *events.ExchangeEventPublisher
	orderPublisher *orderevents.OrderEventPublisher
	logger         *logger.Logger
}

// NewExchangeService creates a new exchange service
func NewExchangeService(
	db *database.DB,
	exchangeRepo *repository.ExchangeRepository,
	orderRepo *orderrepo.OrderRepository,
	movementRepo *movementsrepo.MovementRepository,
	publisher *events.ExchangeEventPublisher,
	orderPublisher *orderevents.OrderEventPublisher,
	log *logger.Logger,
) *ExchangeService {
	return &ExchangeService{
		db:             db,
		exchangeRepo:   exchangeRepo,
		orderRepo:      orderRepo,
		movementRepo:   movementRepo,
		publisher:      publisher,
		orderPublisher: orderPublisher,
		logger:         log,
	}
}

// Register opens an exchange against an original order. The reference is
// tried as an invoice number first, then as an order number; when both
// match, the invoice match wins. Immediate-modality exchanges cross-ship,
// the replacement order is generated right away.
func (s *ExchangeService) Register(ctx context.Context, originalRef string, lines []RegisterLine, modality repository.Modality) (*repository.Exchange, error) {
	if len(lines) == 0 {
		return nil, errors.BadRequest("at least one exchange line is required")
	}
	for _, l := range lines {
		if l.ReturnedSKU == "" || l.ReplacementSKU == "" || l.ReturnedQty <= 0 || l.ReplacementQty <= 0 {
			return nil, errors.BadRequest("exchange lines need returned and replacement sku with positive quantities")
		}
	}
	switch modality {
	case repository.ModalityImmediate, repository.ModalityDeferred:
	default:
		return nil, errors.BadRequest("modality must be IMMEDIATE or DEFERRED")
	}

	original, err := s.resolveOriginal(ctx, originalRef)
	if err != nil {
		return nil, err
	}

	exchange := &repository.Exchange{
		ID:              uuid.NewString(),
		OriginalOrderID: original.ID,
		Modality:        modality,
		IntakeStatus:    repository.IntakePending,
		OutboundStatus:  repository.OutboundPending,
	}
	for _, l := range lines {
		exchange.Lines = append(exchange.Lines, &repository.ExchangeLine{
			ReturnedSKU:    l.ReturnedSKU,
			ReturnedQty:    l.ReturnedQty,
			ReplacementSKU: l.ReplacementSKU,
			ReplacementQty: l.ReplacementQty,
		})
	}

	var satellite *domain.Order
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.exchangeRepo.Create(ctx, tx, exchange); err != nil {
			return err
		}

		if modality == repository.ModalityImmediate {
			var err error
			satellite, err = s.createSatellite(ctx, tx, original, exchange)
			if err != nil {
				return err
			}
			exchange.SatelliteOrderID = &satellite.ID
			exchange.OutboundStatus = repository.OutboundInProgress
			return s.exchangeRepo.SetOutbound(ctx, tx, exchange.ID, repository.OutboundInProgress, &satellite.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("exchange_id", exchange.ID).
		Str("original_order", original.OrderNumber).
		Str("modality", string(modality)).
		Msg("exchange registered")

	s.publisher.PublishRegistered(ctx, exchange)
	if satellite != nil {
		s.orderPublisher.PublishOrderCreated(ctx, satellite)
	}
	return exchange, nil
}

// ReceiveReturn processes the physical return parcel. Restocking only
// happens for merchandise assessed OK; a deferred replacement ships now
// regardless of condition, the customer is owed it either way.
func (s *ExchangeService) ReceiveReturn(ctx context.Context, exchangeID, condition string) (*repository.Exchange, error) {
	switch condition {
	case repository.ConditionOK, repository.ConditionDamaged, repository.ConditionWrongItem:
	default:
		return nil, errors.BadRequest("condition must be OK, DAMAGED or WRONG_ITEM")
	}

	exchange, err := s.exchangeRepo.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	original, err := s.orderRepo.GetByID(ctx, exchange.OriginalOrderID)
	if err != nil {
		return nil, err
	}

	restocked := false
	var satellite *domain.Order
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.exchangeRepo.CompleteIntake(ctx, tx, exchangeID); err != nil {
			return err
		}
		if err := s.exchangeRepo.SetCondition(ctx, tx, exchangeID, condition); err != nil {
			return err
		}

		if condition == repository.ConditionOK {
			clientCode := movementsservice.ClientCodeFor(original)
			var restock []*movementsrepo.Movement
			for _, line := range exchange.Lines {
				restock = append(restock, &movementsrepo.Movement{
					OrderID:     &original.ID,
					OrderNumber: original.OrderNumber,
					ClientCode:  clientCode,
					SKU:         line.ReturnedSKU,
					Quantity:    line.ReturnedQty,
					Pool:        movementsrepo.PoolWarehouse,
					Direction:   movementsrepo.DirectionIn,
				})
			}
			if err := s.movementRepo.InsertBatch(ctx, tx, restock); err != nil {
				return err
			}
			restocked = true
		}

		if exchange.Modality == repository.ModalityDeferred && exchange.OutboundStatus == repository.OutboundPending {
			var err error
			satellite, err = s.createSatellite(ctx, tx, original, exchange)
			if err != nil {
				return err
			}
			exchange.SatelliteOrderID = &satellite.ID
			exchange.OutboundStatus = repository.OutboundInProgress
			return s.exchangeRepo.SetOutbound(ctx, tx, exchangeID, repository.OutboundInProgress, &satellite.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	exchange.IntakeStatus = repository.IntakeCompleted
	now := time.Now()
	exchange.ReceivedAt = &now
	for _, line := range exchange.Lines {
		c := condition
		line.ReceivedCondition = &c
	}

	satelliteNumber := ""
	if satellite != nil {
		satelliteNumber = satellite.OrderNumber
	}

	s.logger.Info().
		Str("exchange_id", exchangeID).
		Str("condition", condition).
		Bool("restocked", restocked).
		Str("satellite_order", satelliteNumber).
		Msg("return received")

	s.publisher.PublishReturnReceived(ctx, exchangeID, condition, restocked, satelliteNumber)
	if satellite != nil {
		s.orderPublisher.PublishOrderCreated(ctx, satellite)
	}
	return exchange, nil
}

// GetExchange returns an exchange with its lines
func (s *ExchangeService) GetExchange(ctx context.Context, id string) (*repository.Exchange, error) {
	return s.exchangeRepo.GetByID(ctx, id)
}

// ListExchanges lists exchanges
func (s *ExchangeService) ListExchanges(ctx context.Context, intakeStatus string, page, pageSize int) ([]*repository.Exchange, int64, error) {
	return s.exchangeRepo.List(ctx, intakeStatus, page, pageSize)
}

// resolveOriginal implements the reference lookup policy: invoice number
// beats order number, newest order wins within each.
func (s *ExchangeService) resolveOriginal(ctx context.Context, ref string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByInvoiceNumber(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	order, err = s.orderRepo.GetByNumber(ctx, ref)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound("original order " + ref)
		}
		return nil, err
	}
	return order, nil
}

// createSatellite generates the replacement order inside the caller's
// transaction. It enters directly at IN_PREPARATION, the lines are
// system-generated and already validated. When the number is taken (a
// second exchange against the same order) a time suffix disambiguates.
func (s *ExchangeService) createSatellite(ctx context.Context, tx *sqlx.Tx, original *domain.Order, exchange *repository.Exchange) (*domain.Order, error) {
	number := satellitePrefix + original.OrderNumber
	if _, err := s.orderRepo.GetByNumber(ctx, number); err == nil {
		number = fmt.Sprintf("%s-%d", number, time.Now().Unix())
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	flowType := domain.FlowManual
	satellite := &domain.Order{
		OrderNumber:  number,
		Channel:      domain.ChannelExchange,
		FlowType:     &flowType,
		Status:       domain.StatusInPreparation,
		CustomerName: original.CustomerName,
		CustomerCode: original.CustomerCode,
	}
	for _, line := range exchange.Lines {
		satellite.Items = append(satellite.Items, &domain.Item{
			SKU:          line.ReplacementSKU,
			RequestedQty: line.ReplacementQty,
		})
	}
	if err := s.orderRepo.Create(ctx, tx, satellite); err != nil {
		return nil, err
	}
	return satellite, nil
}
