package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	movementsservice "github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/orders/events"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

// dispatchSuffixLayout is appended to the order number on dispatch so the
// number can be reused by a future order for the same reference.
const dispatchSuffixLayout = "20060102150405"

// ExchangeCloser settles an exchange's outbound leg once its replacement
// order dispatches.
type ExchangeCloser interface {
	CompleteOutboundFor(ctx context.Context, q sqlx.ExtContext, satelliteOrderID int64) error
}

// PickingService drives the packing bench: scanning units into lines,
// recording parcels, confirming packed orders and dispatching them.
type PickingService struct {
	db        *database.DB
	orderRepo *orderrepo.OrderRepository
	catalog   *catalogservice.CatalogService
	ledger    *movementsservice.LedgerService
	exchanges ExchangeCloser
	publisher *events.OrderEventPublisher
	logger    *logger.Logger
}

// NewPickingService creates a new picking service
func NewPickingService(
	db *database.DB,
	orderRepo *orderrepo.OrderRepository,
	catalog *catalogservice.CatalogService,
	ledger *movementsservice.LedgerService,
	exchanges ExchangeCloser,
	publisher *events.OrderEventPublisher,
	log *logger.Logger,
) *PickingService {
	return &PickingService{
		db:        db,
		orderRepo: orderRepo,
		catalog:   catalog,
		ledger:    ledger,
		exchanges: exchanges,
		publisher: publisher,
		logger:    log,
	}
}

// ScanResult reports the line state after a scan
type ScanResult struct {
	SKU          string `json:"sku"`
	FulfilledQty int    `json:"fulfilled_qty"`
	RequestedQty int    `json:"requested_qty"`
	LineComplete bool   `json:"line_complete"`
	OrderPacked  bool   `json:"order_packed"`
}

// Scan books scanned units against an order line. The quantity check and
// the increment are a single atomic statement, two stations scanning the
// same line at once can never oversell it.
func (s *PickingService) Scan(ctx context.Context, orderID int64, code string, qty int) (*ScanResult, error) {
	if qty <= 0 {
		qty = 1
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusInPreparation {
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusInPreparation))
	}

	product, err := s.catalog.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	ok, err := s.orderRepo.IncrementFulfilled(ctx, s.db, orderID, product.SKU, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		item, err := s.orderRepo.GetItem(ctx, orderID, product.SKU)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// Valid barcode, wrong order
				return nil, errors.UnknownBarcode(code)
			}
			return nil, err
		}
		return nil, errors.Excess(product.SKU, item.FulfilledQty, item.RequestedQty)
	}

	item, err := s.orderRepo.GetItem(ctx, orderID, product.SKU)
	if err != nil {
		return nil, err
	}

	order, err = s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	op := operator.FromContext(ctx)
	s.logger.Debug().
		Str("order_number", order.OrderNumber).
		Str("sku", item.SKU).
		Int("qty", qty).
		Str("operator", op.String()).
		Msg("units scanned")

	return &ScanResult{
		SKU:          item.SKU,
		FulfilledQty: item.FulfilledQty,
		RequestedQty: item.RequestedQty,
		LineComplete: item.Complete(),
		OrderPacked:  order.AllItemsComplete(),
	}, nil
}

// LearnAlias ties an unrecognized barcode to one of the order's lines
// and books the scan that taught it. The sku must already be on the
// order; teaching a code for a foreign sku is rejected.
func (s *PickingService) LearnAlias(ctx context.Context, orderID int64, code, sku string, qty int) (*ScanResult, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusInPreparation {
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusInPreparation))
	}

	if _, err := s.orderRepo.GetItem(ctx, orderID, sku); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.BadRequest(fmt.Sprintf("sku %s is not on order %s", sku, order.OrderNumber))
		}
		return nil, err
	}

	if err := s.catalog.LearnAlias(ctx, code, sku); err != nil {
		return nil, err
	}
	return s.Scan(ctx, orderID, code, qty)
}

// ResetLine zeroes a line's picked quantity so it can be re-scanned
func (s *PickingService) ResetLine(ctx context.Context, orderID int64, sku string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusInPreparation {
		return errors.InvalidStateTransition(string(order.Status), string(domain.StatusInPreparation))
	}

	if err := s.orderRepo.ResetFulfilled(ctx, orderID, sku); err != nil {
		return err
	}

	op := operator.FromContext(ctx)
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("sku", sku).
		Str("operator", op.String()).
		Msg("line reset")
	return nil
}

// SetParcels records the physical packages for an order
func (s *PickingService) SetParcels(ctx context.Context, orderID int64, parcels []*domain.Parcel) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, errors.Conflict(fmt.Sprintf("order %s is %s", order.OrderNumber, order.Status))
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.ReplaceParcels(ctx, tx, orderID, parcels); err != nil {
			return err
		}
		return s.orderRepo.Touch(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	order.Parcels = parcels
	s.logger.Debug().
		Str("order_number", order.OrderNumber).
		Int("parcels", len(parcels)).
		Float64("total_weight_kg", order.TotalParcelWeight()).
		Msg("parcels recorded")
	return order, nil
}

// ConfirmPacked closes the picking phase. Every line must be fully
// scanned. Where the order goes depends on its channel: manual sales park
// for admin paperwork, internal flows complete, the rest line up for
// dispatch. Flows that complete here emit their movements in the same
// transaction.
func (s *PickingService) ConfirmPacked(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusInPreparation {
		return nil, errors.InvalidStateTransition(string(order.Status), string(order.PackedTarget()))
	}
	if !order.HasItems() {
		return nil, errors.EmptyOrder(order.OrderNumber)
	}
	if !order.AllItemsComplete() {
		for _, item := range order.Items {
			if !item.Complete() {
				return nil, errors.Conflict(fmt.Sprintf(
					"line %s is incomplete (%d/%d)", item.SKU, item.FulfilledQty, item.RequestedQty))
			}
		}
	}

	from := order.Status
	target := order.PackedTarget()
	var emitted int

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, from, target); err != nil {
			return err
		}

		if target == domain.StatusAwaitingAdmin {
			stage := domain.StagePreparation
			if err := s.orderRepo.SetManualStage(ctx, tx, orderID, stage); err != nil {
				return err
			}
			order.ManualStage = &stage
		}

		if target == domain.StatusCompleted {
			movements, err := s.ledger.EmitForOrder(ctx, tx, order, movementsservice.EmitPolicy{})
			if err != nil {
				return err
			}
			emitted = len(movements)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = target

	op := operator.FromContext(ctx)
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("to", string(target)).
		Str("operator", op.String()).
		Msg("order packed")

	s.publisher.PublishStatusMoved(ctx, order, from, target, op.String())
	if emitted > 0 {
		s.ledger.NotifyEmitted(ctx, order, emitted)
	}
	if target.IsTerminal() {
		s.ledger.CheckExportTrigger(ctx, order)
	}
	return order, nil
}

// DispatchOptions tunes movement emission on dispatch
type DispatchOptions struct {
	// FloorSplit maps SKU to the units taken from the sales floor,
	// honored only for channels that allow an operator split.
	FloorSplit map[string]int
}

// ConfirmDispatch hands a ready order to the carrier. The status move,
// the number suffix and the movement emission commit atomically; the
// export trigger is evaluated after the commit.
func (s *PickingService) ConfirmDispatch(ctx context.Context, orderID int64, opts DispatchOptions) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusReadyToDispatch {
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusDispatched))
	}
	if !order.HasItems() {
		return nil, errors.EmptyOrder(order.OrderNumber)
	}

	from := order.Status
	dispatchedNumber := fmt.Sprintf("%s-%s", order.OrderNumber, time.Now().Format(dispatchSuffixLayout))
	var emitted int

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, from, domain.StatusDispatched); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateNumber(ctx, tx, orderID, dispatchedNumber); err != nil {
			return err
		}

		order.OrderNumber = dispatchedNumber
		movements, err := s.ledger.EmitForOrder(ctx, tx, order, movementsservice.EmitPolicy{
			FloorSplit: opts.FloorSplit,
		})
		if err != nil {
			return err
		}
		emitted = len(movements)

		if order.Channel == domain.ChannelExchange && s.exchanges != nil {
			return s.exchanges.CompleteOutboundFor(ctx, tx, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = domain.StatusDispatched

	op := operator.FromContext(ctx)
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Int("movements", emitted).
		Str("operator", op.String()).
		Msg("order dispatched")

	s.publisher.PublishOrderDispatched(ctx, order, emitted, op.String())
	if emitted > 0 {
		s.ledger.NotifyEmitted(ctx, order, emitted)
	}
	s.ledger.CheckExportTrigger(ctx, order)
	return order, nil
}
