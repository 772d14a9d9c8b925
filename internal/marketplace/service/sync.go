package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	"github.com/pinoerp/wms-backend/internal/marketplace/client"
	"github.com/pinoerp/wms-backend/internal/marketplace/events"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderevents "github.com/pinoerp/wms-backend/internal/orders/events"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// SyncReport summarizes one sync run
type SyncReport struct {
	Scanned  int `json:"scanned"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SyncService pulls recently paid marketplace shipments into the order
// pipeline. Runs are idempotent, a shipment already imported is skipped.
type SyncService struct {
	db             *database.DB
	cfg            config.MarketplaceConfig
	client         client.Client
	orderRepo      *orderrepo.OrderRepository
	catalog        *catalogservice.CatalogService
	publisher      *events.MarketplaceEventPublisher
	orderPublisher *orderevents.OrderEventPublisher
	logger         *logger.Logger
}

// NewSyncService creates a new marketplace sync service
func NewSyncService(
	db *database.DB,
	cfg config.MarketplaceConfig,
	cl client.Client,
	orderRepo *orderrepo.OrderRepository,
	catalog *catalogservice.CatalogService,
	publisher *events.MarketplaceEventPublisher,
	orderPublisher *orderevents.OrderEventPublisher,
	log *logger.Logger,
) *SyncService {
	return &SyncService{
		db:             db,
		cfg:            cfg,
		client:         cl,
		orderRepo:      orderRepo,
		catalog:        catalog,
		publisher:      publisher,
		orderPublisher: orderPublisher,
		logger:         log,
	}
}

// Run fetches the recent shipment window and imports what is new. A
// single shipment failing does not abort the run.
func (s *SyncService) Run(ctx context.Context) (*SyncReport, error) {
	since := time.Now().Add(-s.cfg.SyncWindow)
	ids, err := s.client.SearchRecentShipments(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Scanned: len(ids)}
	for _, id := range ids {
		imported, err := s.importShipment(ctx, id)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Error().Err(err).Str("shipment_id", id).Msg("shipment import failed")
		case imported:
			report.Imported++
		default:
			report.Skipped++
		}
	}

	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("marketplace sync finished")
	return report, nil
}

func (s *SyncService) importShipment(ctx context.Context, shipmentID string) (bool, error) {
	_, err := s.orderRepo.GetByShipmentID(ctx, shipmentID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return false, err
	}

	shipment, err := s.client.GetShipment(ctx, shipmentID)
	if err != nil {
		return false, err
	}
	if shipment.LogisticType == client.LogisticFulfillment {
		return false, nil
	}
	if shipment.Status == client.StatusShipped || shipment.Status == client.StatusDelivered {
		return false, nil
	}
	if len(shipment.Items) == 0 {
		return false, nil
	}

	order := &domain.Order{
		OrderNumber:        "ML-" + shipment.ID,
		Channel:            domain.ChannelMarketplace,
		Status:             domain.StatusPending,
		ShipmentID:         &shipment.ID,
		MarketplaceOrderID: strPtr(shipment.OrderID),
		TrackingCode:       strPtr(shipment.TrackingCode),
		CustomerName:       strPtr(shipment.BuyerNickname),
		LogisticsType:      strPtr(shipment.LogisticType),
	}
	for _, line := range shipment.Items {
		if line.SKU == "" || line.Quantity <= 0 {
			continue
		}
		product, err := s.catalog.EnsureProduct(ctx, line.SKU, strPtr(line.Title))
		if err != nil {
			return false, err
		}
		order.Items = append(order.Items, &domain.Item{
			SKU:          product.SKU,
			Description:  product.Description,
			RequestedQty: line.Quantity,
		})
	}
	if len(order.Items) == 0 {
		return false, nil
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		// A concurrent run won the race for this shipment
		if errors.Is(err, errors.ErrDuplicateNumber) {
			return false, nil
		}
		return false, err
	}

	s.publisher.PublishOrderImported(ctx, order)
	s.orderPublisher.PublishOrderCreated(ctx, order)
	return true, nil
}

// ConsignmentLine is one line of a consignment stock transfer to the
// marketplace's fulfillment warehouse
type ConsignmentLine struct {
	SKU      string
	Quantity int
}

// ImportConsignment registers a stock shipment bound for the
// marketplace's fulfillment warehouse. The order enters preparation
// directly, there is no picklist step for consignments.
func (s *SyncService) ImportConsignment(ctx context.Context, number string, lines []ConsignmentLine) (*domain.Order, error) {
	if number == "" {
		return nil, errors.BadRequest("consignment number is required")
	}
	if len(lines) == 0 {
		return nil, errors.BadRequest("at least one line is required")
	}

	order := &domain.Order{
		OrderNumber: number,
		Channel:     domain.ChannelConsignment,
		Status:      domain.StatusInPreparation,
	}
	for _, line := range lines {
		if line.SKU == "" || line.Quantity <= 0 {
			return nil, errors.BadRequest("lines need a sku and a positive quantity")
		}
		product, err := s.catalog.EnsureProduct(ctx, line.SKU, nil)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, &domain.Item{
			SKU:          product.SKU,
			Description:  product.Description,
			RequestedQty: line.Quantity,
		})
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Int("lines", len(order.Items)).
		Msg("consignment imported")

	s.orderPublisher.PublishOrderCreated(ctx, order)
	return order, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
