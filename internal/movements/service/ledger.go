package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/movements/events"
	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

// MarketplaceClientCode is stamped on every marketplace movement in place
// of the computed customer, so the legacy ledger books them under one
// account. This is deliberate, the marketplace settles as a single client.
const MarketplaceClientCode = "ML"

// ConsignmentClientCode is the ledger account for consignment stock
const ConsignmentClientCode = "FULL"

// EmitPolicy controls how an order's fulfilled lines turn into movements
type EmitPolicy struct {
	// FloorSplit maps SKU to the quantity taken from the sales floor;
	// the remainder comes from the warehouse. Only internal flows and
	// manual sales honor it, and values are clamped to the line total.
	FloorSplit map[string]int

	// TransferFrom is the source pool for transfer-style flows
	TransferFrom repository.Pool
}

// LedgerService owns movement emission and export bookkeeping
type LedgerService struct {
	db           *database.DB
	movementRepo *repository.MovementRepository
	orderRepo    *orderrepo.OrderRepository
	publisher    *events.MovementEventPublisher
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	movementRepo *repository.MovementRepository,
	orderRepo *orderrepo.OrderRepository,
	publisher *events.MovementEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		movementRepo: movementRepo,
		orderRepo:    orderRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// EmitForOrder writes the movements an order's fulfilled lines produce.
// It runs inside the caller's transaction so the emission commits or rolls
// back together with the state transition that triggered it.
func (s *LedgerService) EmitForOrder(ctx context.Context, tx *sqlx.Tx, order *domain.Order, policy EmitPolicy) ([]*repository.Movement, error) {
	clientCode := ClientCodeFor(order)

	var movements []*repository.Movement
	for _, item := range order.Items {
		if item.FulfilledQty <= 0 {
			continue
		}
		movements = append(movements, buildMovements(order, item, clientCode, policy)...)
	}
	if len(movements) == 0 {
		return nil, nil
	}

	if err := s.movementRepo.InsertBatch(ctx, tx, movements); err != nil {
		return nil, err
	}
	return movements, nil
}

// ClientCodeFor returns the legacy ledger account a movement for this
// order books against.
func ClientCodeFor(order *domain.Order) string {
	switch order.Channel {
	case domain.ChannelMarketplace:
		return MarketplaceClientCode
	case domain.ChannelConsignment:
		return ConsignmentClientCode
	}
	if order.CustomerCode != nil && *order.CustomerCode != "" {
		return *order.CustomerCode
	}
	return "GEN"
}

func buildMovements(order *domain.Order, item *domain.Item, clientCode string, policy EmitPolicy) []*repository.Movement {
	base := repository.Movement{
		OrderID:     &order.ID,
		OrderNumber: order.OrderNumber,
		ClientCode:  clientCode,
		SKU:         item.SKU,
	}
	qty := item.FulfilledQty

	switch order.Channel {
	case domain.ChannelTransfer, domain.ChannelReplenishment:
		// Stock changes pools, the totals do not change. One debit on
		// the source pool and one credit on the other.
		from := policy.TransferFrom
		if from == "" {
			from = repository.PoolWarehouse
		}
		debit := base
		debit.Quantity = qty
		debit.Pool = from
		debit.Direction = repository.DirectionOut

		credit := base
		credit.Quantity = qty
		credit.Pool = from.Other()
		credit.Direction = repository.DirectionIn
		return []*repository.Movement{&debit, &credit}

	case domain.ChannelIngress:
		return splitMovements(base, qty, policy.FloorSplit[item.SKU], repository.DirectionIn)

	case domain.ChannelEgress, domain.ChannelManual:
		return splitMovements(base, qty, policy.FloorSplit[item.SKU], repository.DirectionOut)

	default:
		// Sales channels ship from the warehouse pool, no operator choice
		m := base
		m.Quantity = qty
		m.Pool = repository.PoolWarehouse
		m.Direction = repository.DirectionOut
		return []*repository.Movement{&m}
	}
}

// splitMovements divides a line between the two pools per the operator's
// floor quantity, clamped to the line total.
func splitMovements(base repository.Movement, qty, floorQty int, dir repository.Direction) []*repository.Movement {
	if floorQty < 0 {
		floorQty = 0
	}
	if floorQty > qty {
		floorQty = qty
	}

	var out []*repository.Movement
	if floorQty > 0 {
		m := base
		m.Quantity = floorQty
		m.Pool = repository.PoolSalesFloor
		m.Direction = dir
		out = append(out, &m)
	}
	if qty-floorQty > 0 {
		m := base
		m.Quantity = qty - floorQty
		m.Pool = repository.PoolWarehouse
		m.Direction = dir
		out = append(out, &m)
	}
	return out
}

// NotifyEmitted publishes the emitted event after the caller's transaction
// has committed.
func (s *LedgerService) NotifyEmitted(ctx context.Context, order *domain.Order, count int) {
	s.publisher.PublishMovementsEmitted(ctx, order.ID, order.OrderNumber, count)
}

// CheckExportTrigger re-evaluates the level-triggered export condition for
// the order's channel group. When the last open order of the group has
// settled, the group's accumulated unexported movements become eligible
// and the export worker is signaled.
func (s *LedgerService) CheckExportTrigger(ctx context.Context, order *domain.Order) {
	group, ok := order.Channel.Group()
	if !ok {
		return
	}

	open, err := s.orderRepo.CountOpenInChannels(ctx, s.db, domain.GroupChannels(group))
	if err != nil {
		s.logger.Error().Err(err).Str("group", string(group)).Msg("failed to evaluate export trigger")
		return
	}
	if open > 0 {
		return
	}

	s.logger.Info().
		Str("group", string(group)).
		Str("triggered_by", order.OrderNumber).
		Msg("channel group drained, export eligible")

	s.publisher.PublishExportEligible(ctx, string(group), order.OrderNumber)
}

// ListMovements returns ledger entries matching the filter
func (s *LedgerService) ListMovements(ctx context.Context, filter repository.ListFilter) ([]*repository.Movement, int64, error) {
	return s.movementRepo.List(ctx, filter)
}

// ListForOrder returns the movements an order produced
func (s *LedgerService) ListForOrder(ctx context.Context, orderID int64) ([]*repository.Movement, error) {
	return s.movementRepo.ListByOrder(ctx, orderID)
}

// MarkExported flags movements as exported on behalf of the export
// collaborator. Idempotent, re-marking flips nothing.
func (s *LedgerService) MarkExported(ctx context.Context, ids []int64) (int64, error) {
	return s.movementRepo.MarkExported(ctx, s.db, ids)
}

// Reopen administratively returns exported movements to the unexported
// set. This is the sole sanctioned path that clears the exported flag and
// it is always logged against the operator.
func (s *LedgerService) Reopen(ctx context.Context, ids []int64, reason string) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.BadRequest("no movement ids given")
	}

	op := operator.FromContext(ctx)
	if op.IsSystem() {
		return 0, errors.BadRequest("reopening exported movements requires an operator")
	}

	var reopened int64
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		reopened, err = s.movementRepo.Reopen(ctx, tx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	if reopened == 0 {
		return 0, errors.NotFound("exported movement")
	}

	s.logger.Warn().
		Int64("reopened", reopened).
		Str("operator", op.String()).
		Str("reason", reason).
		Msg("exported movements reopened")

	s.publisher.PublishExportReopened(ctx, ids, op.String(), reason)
	return reopened, nil
}

// QueueDepth returns the unexported ledger backlog
func (s *LedgerService) QueueDepth(ctx context.Context) (int64, error) {
	return s.movementRepo.CountUnexported(ctx)
}
