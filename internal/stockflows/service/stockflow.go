package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	movementsservice "github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderevents "github.com/pinoerp/wms-backend/internal/orders/events"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

const (
	dayRefLayout = "20060102"
	suffixLayout = "20060102150405"
)

// numberPrefixes keys the day reference prefix by channel
var numberPrefixes = map[domain.Channel]string{
	domain.ChannelTransfer: "TR-",
	domain.ChannelIngress:  "ING-",
	domain.ChannelEgress:   "EGR-",
}

// StockFlowService drives the manual-entry internal flows: goods
// receipts, goods issues and pool transfers. Lines are entered by
// scanning or typing codes against the day's working order, then the
// whole order is finalized in one shot.
type StockFlowService struct {
	db        *database.DB
	orderRepo *orderrepo.OrderRepository
	catalog   *catalogservice.CatalogService
	ledger    *movementsservice.LedgerService
	publisher *orderevents.OrderEventPublisher
	logger    *logger.Logger
}

// NewStockFlowService creates a new stock flow service
func NewStockFlowService(
	db *database.DB,
	orderRepo *orderrepo.OrderRepository,
	catalog *catalogservice.CatalogService,
	ledger *movementsservice.LedgerService,
	publisher *orderevents.OrderEventPublisher,
	log *logger.Logger,
) *StockFlowService {
	return &StockFlowService{
		db:        db,
		orderRepo: orderRepo,
		catalog:   catalog,
		ledger:    ledger,
		publisher: publisher,
		logger:    log,
	}
}

// OpenWorkingOrder returns today's open order for the channel, creating
// it when none exists. A second order on the same day (the first one was
// already finalized) gets a time suffix on the day reference.
func (s *StockFlowService) OpenWorkingOrder(ctx context.Context, channel domain.Channel) (*domain.Order, error) {
	prefix, ok := numberPrefixes[channel]
	if !ok {
		return nil, errors.BadRequest("channel must be TRANSFER, INGRESS or EGRESS")
	}

	number := prefix + time.Now().Format(dayRefLayout)
	existing, err := s.orderRepo.GetByNumber(ctx, number)
	switch {
	case err == nil:
		if existing.Status == domain.StatusInPreparation {
			return existing, nil
		}
		number = fmt.Sprintf("%s-%s", number, time.Now().Format("150405"))
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	order := &domain.Order{
		OrderNumber: number,
		Channel:     channel,
		Status:      domain.StatusInPreparation,
	}
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("channel", string(channel)).
		Str("operator", operator.FromContext(ctx).String()).
		Msg("working order opened")

	s.publisher.PublishOrderCreated(ctx, order)
	return order, nil
}

// AddByCode adds merchandise to a working order by scanned or typed
// code. An existing line for the same sku merges: both the requested
// and the fulfilled quantity grow, manual entry counts as picked.
func (s *StockFlowService) AddByCode(ctx context.Context, orderID int64, code string, qty int) (*domain.Item, error) {
	if qty <= 0 {
		return nil, errors.BadRequest("quantity must be positive")
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Channel.InternalFlow() {
		return nil, errors.BadRequest("order is not an internal flow order")
	}
	if order.Status != domain.StatusInPreparation {
		return nil, errors.InvalidStateTransition(string(order.Status), "line entry")
	}

	product, err := s.catalog.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item := &domain.Item{
			OrderID:      orderID,
			SKU:          product.SKU,
			Description:  product.Description,
			RequestedQty: qty,
		}
		if err := s.orderRepo.UpsertItem(ctx, tx, item); err != nil {
			return err
		}
		ok, err := s.orderRepo.IncrementFulfilled(ctx, tx, orderID, product.SKU, qty)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Internal(fmt.Sprintf("merge left line %s over requested", product.SKU))
		}
		return s.orderRepo.Touch(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	return s.orderRepo.GetItem(ctx, orderID, product.SKU)
}

// FinalizeOptions carries the operator's pool and counterparty choices
type FinalizeOptions struct {
	// SourcePool is the debited pool for transfers and egresses.
	// Defaults to WAREHOUSE.
	SourcePool movementsrepo.Pool

	// FloorSplit routes part of each ingress or egress line through the
	// sales floor, keyed by sku.
	FloorSplit map[string]int

	// PartyName and PartyCode record the counterparty. A name without
	// a code is resolved against the party directory before the order
	// closes.
	PartyName *string
	PartyCode *string
}

// Finalize completes a working order: movements are emitted per the
// channel's pool rules and the order lands in COMPLETED with a time
// suffix on its reference.
func (s *StockFlowService) Finalize(ctx context.Context, orderID int64, opts FinalizeOptions) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Channel.InternalFlow() {
		return nil, errors.BadRequest("order is not an internal flow order")
	}
	if order.Status != domain.StatusInPreparation {
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusCompleted))
	}
	if !order.HasItems() {
		return nil, errors.EmptyOrder(order.OrderNumber)
	}

	finalNumber := order.OrderNumber + "-" + time.Now().Format(suffixLayout)
	policy := movementsservice.EmitPolicy{
		FloorSplit:   opts.FloorSplit,
		TransferFrom: opts.SourcePool,
	}

	if opts.PartyName != nil && opts.PartyCode == nil {
		code, err := s.resolvePartyCode(ctx, order.Channel, *opts.PartyName)
		if err != nil {
			return nil, err
		}
		opts.PartyCode = &code
	}

	var emitted int
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if opts.PartyName != nil || opts.PartyCode != nil {
			if err := s.orderRepo.SetCustomer(ctx, tx, orderID, opts.PartyName, opts.PartyCode); err != nil {
				return err
			}
			order.CustomerName = opts.PartyName
			order.CustomerCode = opts.PartyCode
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, domain.StatusInPreparation, domain.StatusCompleted); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateNumber(ctx, tx, orderID, finalNumber); err != nil {
			return err
		}
		order.OrderNumber = finalNumber
		movements, err := s.ledger.EmitForOrder(ctx, tx, order, policy)
		if err != nil {
			return err
		}
		emitted = len(movements)
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = domain.StatusCompleted

	op := operator.FromContext(ctx)
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("channel", string(order.Channel)).
		Int("movements", emitted).
		Str("operator", op.String()).
		Msg("internal flow finalized")

	s.publisher.PublishStatusMoved(ctx, order, domain.StatusInPreparation, domain.StatusCompleted, op.String())
	s.ledger.NotifyEmitted(ctx, order, emitted)
	s.ledger.CheckExportTrigger(ctx, order)
	return order, nil
}

// resolvePartyCode books the counterparty against a directory account.
// Ingresses come from suppliers, everything else faces a customer.
func (s *StockFlowService) resolvePartyCode(ctx context.Context, channel domain.Channel, name string) (string, error) {
	if channel == domain.ChannelIngress {
		return s.catalog.ResolveSupplierCode(ctx, name)
	}
	return s.catalog.ResolveCustomerCode(ctx, name)
}

// ListWorking lists the open working orders for a channel
func (s *StockFlowService) ListWorking(ctx context.Context, channel domain.Channel) ([]*domain.Order, error) {
	if _, ok := numberPrefixes[channel]; !ok {
		return nil, errors.BadRequest("channel must be TRANSFER, INGRESS or EGRESS")
	}
	st := domain.StatusInPreparation
	ch := channel
	orders, _, err := s.orderRepo.List(ctx, orderrepo.ListFilter{
		Channel:  &ch,
		Status:   &st,
		Page:     1,
		PageSize: 50,
	})
	return orders, err
}
