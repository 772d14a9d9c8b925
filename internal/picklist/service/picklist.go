package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/picklist/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

// QuantityPolicy chooses which quantity a consolidated line shows
type QuantityPolicy string

const (
	// PolicyFullRequested totals the requested quantities, used when
	// assembling a fresh batch from pending orders.
	PolicyFullRequested QuantityPolicy = "requested"

	// PolicyOutstanding totals only what is still unpicked, used when
	// re-printing a batch that is already in progress.
	PolicyOutstanding QuantityPolicy = "outstanding"
)

// ConsolidatedLine is one SKU aggregated across a set of orders
type ConsolidatedLine struct {
	SKU          string   `json:"sku"`
	Description  *string  `json:"description,omitempty"`
	Quantity     int      `json:"quantity"`
	OrderNumbers []string `json:"order_numbers"`
}

// BatchPublisher abstracts event emission so tests can observe batches
// without a broker.
type BatchPublisher interface {
	PublishBatchCreated(ctx context.Context, data messaging.BatchCreatedEvent)
}

// PicklistService assembles pick batches from pending orders
type PicklistService struct {
	db           *database.DB
	picklistRepo *repository.PicklistRepository
	orderRepo    *orderrepo.OrderRepository
	publisher    BatchPublisher
	logger       *logger.Logger
}

// NewPicklistService creates a new picklist service
func NewPicklistService(
	db *database.DB,
	picklistRepo *repository.PicklistRepository,
	orderRepo *orderrepo.OrderRepository,
	publisher BatchPublisher,
	log *logger.Logger,
) *PicklistService {
	return &PicklistService{
		db:           db,
		picklistRepo: picklistRepo,
		orderRepo:    orderRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// Consolidate aggregates the given orders' lines by SKU into one walking
// list. The quantity policy decides between full requested quantities and
// what remains outstanding.
func (s *PicklistService) Consolidate(ctx context.Context, orderIDs []int64, policy QuantityPolicy) ([]*ConsolidatedLine, error) {
	if len(orderIDs) == 0 {
		return nil, errors.BadRequest("no orders given")
	}

	bySKU := map[string]*ConsolidatedLine{}
	for _, id := range orderIDs {
		order, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		for _, item := range order.Items {
			qty := item.RequestedQty
			if policy == PolicyOutstanding {
				qty = item.RequestedQty - item.FulfilledQty
			}
			if qty <= 0 {
				continue
			}

			line, ok := bySKU[item.SKU]
			if !ok {
				line = &ConsolidatedLine{SKU: item.SKU, Description: item.Description}
				bySKU[item.SKU] = line
			}
			line.Quantity += qty
			line.OrderNumbers = append(line.OrderNumbers, order.OrderNumber)
		}
	}

	lines := make([]*ConsolidatedLine, 0, len(bySKU))
	for _, line := range bySKU {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })
	return lines, nil
}

// ConsolidateBatch re-consolidates an existing batch, counting only what
// is still outstanding.
func (s *PicklistService) ConsolidateBatch(ctx context.Context, picklistID string) ([]*ConsolidatedLine, error) {
	orders, err := s.orderRepo.ListByPicklist(ctx, picklistID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.NotFound("picklist")
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return s.Consolidate(ctx, ids, PolicyOutstanding)
}

// CreateBatch stamps a set of pending orders onto a new picklist in one
// transaction. Orders that are not pending anymore or carry no lines are
// skipped; if nothing remains the batch is not created.
func (s *PicklistService) CreateBatch(ctx context.Context, orderIDs []int64) (*repository.Picklist, []*domain.Order, error) {
	if len(orderIDs) == 0 {
		return nil, nil, errors.BadRequest("no orders given")
	}

	var eligible []*domain.Order
	for _, id := range orderIDs {
		order, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		if order.Status != domain.StatusPending || !order.HasItems() {
			continue
		}
		eligible = append(eligible, order)
	}
	if len(eligible) == 0 {
		return nil, nil, errors.NoValidOrders()
	}

	op := operator.FromContext(ctx)
	picklist := &repository.Picklist{
		ID:        uuid.NewString(),
		CreatedBy: op.String(),
	}

	ids := make([]int64, len(eligible))
	for i, o := range eligible {
		ids[i] = o.ID
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.picklistRepo.Create(ctx, tx, picklist); err != nil {
			return err
		}

		claimed, err := s.orderRepo.AssignPicklist(ctx, tx, picklist.ID, ids)
		if err != nil {
			return err
		}
		// A concurrent batch can steal orders between the eligibility
		// read and the claim. All-or-nothing keeps batches coherent.
		if claimed != int64(len(ids)) {
			return errors.NoValidOrders()
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	lineCount := 0
	totalUnits := 0
	for _, o := range eligible {
		o.Status = domain.StatusInPreparation
		o.PicklistID = &picklist.ID
		lineCount += len(o.Items)
		for _, it := range o.Items {
			totalUnits += it.RequestedQty
		}
	}

	s.logger.Info().
		Str("picklist_id", picklist.ID).
		Int("orders", len(eligible)).
		Int("lines", lineCount).
		Str("operator", op.String()).
		Msg("pick batch created")

	if s.publisher != nil {
		s.publisher.PublishBatchCreated(ctx, messaging.BatchCreatedEvent{
			BatchID:    picklist.ID,
			OrderIDs:   ids,
			LineCount:  lineCount,
			TotalUnits: totalUnits,
		})
	}
	return picklist, eligible, nil
}

// GetBatch returns a pick batch with its orders
func (s *PicklistService) GetBatch(ctx context.Context, id string) (*repository.Picklist, []*domain.Order, error) {
	picklist, err := s.picklistRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	orders, err := s.orderRepo.ListByPicklist(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return picklist, orders, nil
}

// ListBatches lists pick batches
func (s *PicklistService) ListBatches(ctx context.Context, page, pageSize int) ([]*repository.Picklist, int64, error) {
	return s.picklistRepo.List(ctx, page, pageSize)
}

// GetProgress reports how far a batch has come
func (s *PicklistService) GetProgress(ctx context.Context, id string) (*repository.Progress, error) {
	return s.picklistRepo.GetProgress(ctx, id)
}
