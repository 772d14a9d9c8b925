package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderevents "github.com/pinoerp/wms-backend/internal/orders/events"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/replenishment/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

const numberLayout = "REP-20060102-150405"

// ReplenishmentService computes sales-floor restock suggestions and
// turns accepted ones into picking work.
type ReplenishmentService struct {
	db        *database.DB
	ruleRepo  *repository.RuleRepository
	orderRepo *orderrepo.OrderRepository
	catalog   *catalogservice.CatalogService
	publisher *orderevents.OrderEventPublisher
	logger    *logger.Logger
}

// NewReplenishmentService creates a new replenishment service
func NewReplenishmentService(
	db *database.DB,
	ruleRepo *repository.RuleRepository,
	orderRepo *orderrepo.OrderRepository,
	catalog *catalogservice.CatalogService,
	publisher *orderevents.OrderEventPublisher,
	log *logger.Logger,
) *ReplenishmentService {
	return &ReplenishmentService{
		db:        db,
		ruleRepo:  ruleRepo,
		orderRepo: orderRepo,
		catalog:   catalog,
		publisher: publisher,
		logger:    log,
	}
}

// SetRule creates or replaces the rule for a sku. The sku must exist in
// the product master.
func (s *ReplenishmentService) SetRule(ctx context.Context, sku string, minFloorQty, refillQty int) (*repository.Rule, error) {
	if minFloorQty < 0 {
		return nil, errors.BadRequest("minimum floor quantity cannot be negative")
	}
	if refillQty <= 0 {
		return nil, errors.BadRequest("refill quantity must be positive")
	}
	if _, err := s.catalog.GetProduct(ctx, sku); err != nil {
		return nil, err
	}

	rule := &repository.Rule{SKU: sku, MinFloorQty: minFloorQty, RefillQty: refillQty}
	if err := s.ruleRepo.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRule returns the rule for a sku
func (s *ReplenishmentService) GetRule(ctx context.Context, sku string) (*repository.Rule, error) {
	return s.ruleRepo.GetBySKU(ctx, sku)
}

// ListRules returns all rules
func (s *ReplenishmentService) ListRules(ctx context.Context) ([]*repository.Rule, error) {
	return s.ruleRepo.List(ctx)
}

// DeleteRule removes the rule for a sku
func (s *ReplenishmentService) DeleteRule(ctx context.Context, sku string) error {
	return s.ruleRepo.Delete(ctx, sku)
}

// Suggestions returns the skus currently below their floor minimum.
// Hidden skus stay in the list with their flag set, the operator decides.
func (s *ReplenishmentService) Suggestions(ctx context.Context) ([]*repository.Suggestion, error) {
	return s.ruleRepo.Suggestions(ctx)
}

// GenerateOrder creates a replenishment order from the accepted skus.
// Each line's quantity is the rule's refill quantity capped to what the
// warehouse actually holds.
func (s *ReplenishmentService) GenerateOrder(ctx context.Context, skus []string) (*domain.Order, error) {
	if len(skus) == 0 {
		return nil, errors.BadRequest("at least one sku is required")
	}

	suggestions, err := s.ruleRepo.Suggestions(ctx)
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]*repository.Suggestion, len(suggestions))
	for _, sug := range suggestions {
		bySKU[sug.SKU] = sug
	}

	order := &domain.Order{
		OrderNumber: time.Now().Format(numberLayout),
		Channel:     domain.ChannelReplenishment,
		Status:      domain.StatusPending,
	}
	for _, sku := range skus {
		sug, ok := bySKU[sku]
		if !ok {
			return nil, errors.BadRequest("sku " + sku + " is not currently suggested")
		}
		qty := sug.RefillQty
		if qty > sug.WarehouseQty {
			qty = sug.WarehouseQty
		}
		order.Items = append(order.Items, &domain.Item{
			SKU:          sug.SKU,
			Description:  sug.Description,
			RequestedQty: qty,
		})
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Int("lines", len(order.Items)).
		Str("operator", operator.FromContext(ctx).String()).
		Msg("replenishment order generated")

	s.publisher.PublishOrderCreated(ctx, order)
	return order, nil
}
