package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/orders/events"
	"github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

const numberSuffixLayout = "20060102150405"

// OrderService handles order lifecycle business logic
type OrderService struct {
	db        *database.DB
	orderRepo *repository.OrderRepository
	publisher *events.OrderEventPublisher
	logger    *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	db *database.DB,
	orderRepo *repository.OrderRepository,
	publisher *events.OrderEventPublisher,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		db:        db,
		orderRepo: orderRepo,
		publisher: publisher,
		logger:    log,
	}
}

// CreateOrder registers a new order. Orders coming out of an exchange skip
// the pending queue and start in preparation; everything else starts
// pending.
func (s *OrderService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Status == "" {
		order.Status = domain.StatusPending
		if order.Channel == domain.ChannelExchange {
			order.Status = domain.StatusInPreparation
		}
	}

	if order.Channel == domain.ChannelManual && order.ManualStage == nil {
		stage := domain.StagePreparation
		order.ManualStage = &stage
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if errors.Is(err, errors.ErrDuplicateNumber) {
		// one retry with a time suffix keeps concurrent intakes from
		// losing an order over a number collision
		suffixed := order.OrderNumber + "-" + time.Now().Format(numberSuffixLayout)
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("retry_number", suffixed).
			Msg("order number collision, retrying with suffix")
		order.OrderNumber = suffixed
		err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			return s.orderRepo.Create(ctx, tx, order)
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("channel", string(order.Channel)).
		Str("status", string(order.Status)).
		Msg("order created")

	s.publisher.PublishOrderCreated(ctx, order)
	return order, nil
}

// GetOrder returns an order by id
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// GetOrderByNumber returns an order by its business number
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.orderRepo.GetByNumber(ctx, number)
}

// ListOrders lists orders matching the filter
func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, int64, error) {
	return s.orderRepo.List(ctx, filter)
}

// MoveStatus performs a validated lifecycle transition. An order with no
// lines cannot move at all, and one with a picking shortfall cannot reach
// the dispatch queue.
func (s *OrderService) MoveStatus(ctx context.Context, id int64, to domain.Status) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(order.Status, to) {
		return nil, errors.InvalidStateTransition(string(order.Status), string(to))
	}
	if !order.HasItems() {
		return nil, errors.EmptyOrder(order.OrderNumber)
	}
	if order.Status == domain.StatusInPreparation && to == domain.StatusReadyToDispatch && !order.AllItemsComplete() {
		for _, item := range order.Items {
			if !item.Complete() {
				return nil, errors.Conflict(fmt.Sprintf(
					"line %s is incomplete (%d/%d)", item.SKU, item.FulfilledQty, item.RequestedQty))
			}
		}
	}

	from := order.Status
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.UpdateStatus(ctx, tx, id, from, to)
	})
	if err != nil {
		return nil, err
	}
	order.Status = to

	op := operator.FromContext(ctx)
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("operator", op.String()).
		Msg("order status moved")

	s.publisher.PublishStatusMoved(ctx, order, from, to, op.String())
	return order, nil
}

// AttachDocs records admin paperwork on a manual order and advances it
// through the paperwork states. An order parked awaiting admin moves to
// PENDING_DOCS until an invoice is attached, then PENDING_LABEL until a
// shipping label is attached, then READY_TO_DISPATCH.
func (s *OrderService) AttachDocs(ctx context.Context, id int64, labelRef, invoiceRef, invoiceNumber *string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.StatusAwaitingAdmin, domain.StatusPendingDocs, domain.StatusPendingLabel:
	default:
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusReadyToDispatch))
	}

	from := order.Status
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.SetAttachments(ctx, tx, id, labelRef, invoiceRef, invoiceNumber); err != nil {
			return err
		}

		if invoiceRef != nil {
			order.InvoiceRef = invoiceRef
		}
		if labelRef != nil {
			order.LabelRef = labelRef
		}

		target := paperworkTarget(order)
		if target == from {
			return nil
		}
		if !domain.CanTransition(from, target) {
			return errors.InvalidStateTransition(string(from), string(target))
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, id, from, target); err != nil {
			return err
		}
		if target == domain.StatusReadyToDispatch {
			stage := domain.StageCloseout
			if err := s.orderRepo.SetManualStage(ctx, tx, id, stage); err != nil {
				return err
			}
			order.ManualStage = &stage
		}
		order.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status != from {
		op := operator.FromContext(ctx)
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Str("from", string(from)).
			Str("to", string(order.Status)).
			Msg("order paperwork advanced")
		s.publisher.PublishStatusMoved(ctx, order, from, order.Status, op.String())
	}
	return order, nil
}

// paperworkTarget decides where a manual order sits given which documents
// it carries.
func paperworkTarget(order *domain.Order) domain.Status {
	switch {
	case order.InvoiceRef == nil:
		return domain.StatusPendingDocs
	case order.LabelRef == nil:
		return domain.StatusPendingLabel
	default:
		return domain.StatusReadyToDispatch
	}
}

// CancelOrder cancels an order from any non-terminal state
func (s *OrderService) CancelOrder(ctx context.Context, id int64, reason string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status.IsTerminal() {
		return nil, errors.InvalidStateTransition(string(order.Status), string(domain.StatusCancelled))
	}

	from := order.Status
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.UpdateStatus(ctx, tx, id, from, domain.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	order.Status = domain.StatusCancelled

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("from", string(from)).
		Str("reason", reason).
		Msg("order cancelled")

	s.publisher.PublishOrderCancelled(ctx, order, from, reason)
	return order, nil
}

// DeleteOrder removes an order. Orders still in flight are protected;
// passing force overrides the guard and is logged against the operator.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64, force bool) error {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	op := operator.FromContext(ctx)
	if !order.Status.IsTerminal() {
		if !force {
			return errors.Conflict(fmt.Sprintf("order %s is still %s and cannot be deleted", order.OrderNumber, order.Status))
		}
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("status", string(order.Status)).
			Str("operator", op.String()).
			Msg("force deleting order in non-terminal state")
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.PublishOrderDeleted(ctx, order, force, op.String())
	return nil
}

// AddItem adds a line to an order, merging with an existing line for the
// same SKU. Only orders that have not yet been packed accept new lines.
func (s *OrderService) AddItem(ctx context.Context, orderID int64, item *domain.Item) (*domain.Item, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.StatusPending, domain.StatusInPreparation:
	default:
		return nil, errors.Conflict(fmt.Sprintf("order %s no longer accepts lines", order.OrderNumber))
	}

	if item.RequestedQty <= 0 {
		return nil, errors.BadRequest("requested quantity must be positive")
	}

	item.OrderID = orderID
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpsertItem(ctx, tx, item); err != nil {
			return err
		}
		return s.orderRepo.Touch(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem deletes a line from an unpacked order. Lines with picked
// stock cannot be removed, only reset.
func (s *OrderService) RemoveItem(ctx context.Context, orderID int64, sku string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case domain.StatusPending, domain.StatusInPreparation:
	default:
		return errors.Conflict(fmt.Sprintf("order %s no longer accepts line changes", order.OrderNumber))
	}

	item, err := s.orderRepo.GetItem(ctx, orderID, sku)
	if err != nil {
		return err
	}
	if item.FulfilledQty > 0 {
		return errors.Conflict(fmt.Sprintf("line %s has picked stock, reset it first", sku))
	}

	return s.orderRepo.RemoveItem(ctx, orderID, sku)
}
