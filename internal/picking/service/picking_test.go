package service_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	catalogrepo "github.com/pinoerp/wms-backend/internal/catalog/repository"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	exchangerepo "github.com/pinoerp/wms-backend/internal/exchanges/repository"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	movementsservice "github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/picking/service"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func newPicking() *service.PickingService {
	orders := orderrepo.NewOrderRepository(suite.DB)
	catalog := catalogservice.NewCatalogService(
		suite.DB,
		catalogrepo.NewProductRepository(suite.DB),
		catalogrepo.NewAliasRepository(suite.DB),
		catalogrepo.NewPartyRepository(suite.DB),
		nil,
		nil,
		suite.Logger,
	)
	ledger := movementsservice.NewLedgerService(
		suite.DB,
		movementsrepo.NewMovementRepository(suite.DB),
		orders,
		nil,
		suite.Logger,
	)
	return service.NewPickingService(suite.DB, orders, catalog, ledger,
		exchangerepo.NewExchangeRepository(suite.DB), nil, suite.Logger)
}

func seedProduct(t *testing.T, ctx context.Context, sku, ean string) {
	t.Helper()
	repo := catalogrepo.NewProductRepository(suite.DB)
	desc := "Seeded product " + sku
	p := &catalogrepo.Product{SKU: sku, Description: &desc}
	if ean != "" {
		p.EAN = &ean
	}
	_, err := repo.Upsert(ctx, suite.DB, p)
	require.NoError(t, err)
}

func seedOrder(t *testing.T, ctx context.Context, order *domain.Order) *domain.Order {
	t.Helper()
	repo := orderrepo.NewOrderRepository(suite.DB)
	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.Create(ctx, tx, order)
	})
	require.NoError(t, err)
	return order
}

func TestScan_ResolvesByEANAndBooksLine(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "7791234567890")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-1",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 3}},
	})

	result, err := svc.Scan(ctx, order.ID, "7791234567890", 2)
	require.NoError(t, err)
	assert.Equal(t, "SKU-A", result.SKU)
	assert.Equal(t, 2, result.FulfilledQty)
	assert.False(t, result.LineComplete)
	assert.False(t, result.OrderPacked)

	result, err = svc.Scan(ctx, order.ID, "SKU-A", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, result.FulfilledQty)
	assert.True(t, result.LineComplete)
	assert.True(t, result.OrderPacked)
}

func TestScan_RejectsOrdersNotInPreparation(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-2",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	})

	_, err := svc.Scan(ctx, order.ID, "SKU-A", 1)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestScan_KnownProductNotOnOrder(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "")
	seedProduct(t, ctx, "SKU-B", "")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-3",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	})

	_, err := svc.Scan(ctx, order.ID, "SKU-B", 1)
	assert.ErrorIs(t, err, errors.ErrUnknownBarcode)
}

func TestScan_ExcessLeavesLineUntouched(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-4",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2}},
	})

	_, err := svc.Scan(ctx, order.ID, "SKU-A", 2)
	require.NoError(t, err)

	// no sequence of further scans may push the line past requested
	orders := orderrepo.NewOrderRepository(suite.DB)
	for _, qty := range []int{1, 2, 5, 100, 1} {
		_, err = svc.Scan(ctx, order.ID, "SKU-A", qty)
		assert.ErrorIs(t, err, errors.ErrExcess, "qty %d", qty)

		item, err := orders.GetItem(ctx, order.ID, "SKU-A")
		require.NoError(t, err)
		assert.Equal(t, 2, item.FulfilledQty, "qty %d", qty)
	}
}

func TestLearnAlias_TeachesCodeAndBooksScan(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "")
	seedProduct(t, ctx, "SKU-B", "")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-11",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2}},
	})

	_, err := svc.Scan(ctx, order.ID, "INNER-BOX-7", 1)
	require.ErrorIs(t, err, errors.ErrUnknownBarcode)

	result, err := svc.LearnAlias(ctx, order.ID, "INNER-BOX-7", "SKU-A", 1)
	require.NoError(t, err)
	assert.Equal(t, "SKU-A", result.SKU)
	assert.Equal(t, 1, result.FulfilledQty)

	// The learned code now scans directly
	result, err = svc.Scan(ctx, order.ID, "INNER-BOX-7", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FulfilledQty)

	// Teaching a code for a sku the order does not carry is rejected
	_, err = svc.LearnAlias(ctx, order.ID, "OTHER-CODE", "SKU-B", 1)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestSetParcels(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-12",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	updated, err := svc.SetParcels(ctx, order.ID, []*domain.Parcel{
		{Seq: 1, WeightKg: 1.2},
		{Seq: 2, WeightKg: 0.8},
	})
	require.NoError(t, err)
	require.Len(t, updated.Parcels, 2)
	assert.InDelta(t, 2.0, updated.TotalParcelWeight(), 0.001)

	// Replacing the set drops the old parcels
	updated, err = svc.SetParcels(ctx, order.ID, []*domain.Parcel{
		{Seq: 1, WeightKg: 3.5},
	})
	require.NoError(t, err)

	stored, err := orderrepo.NewOrderRepository(suite.DB).GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Parcels, 1)
	assert.InDelta(t, 3.5, stored.Parcels[0].WeightKg, 0.001)
}

func TestResetLine(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	seedProduct(t, ctx, "SKU-A", "")
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-5",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2}},
	})

	_, err := svc.Scan(ctx, order.ID, "SKU-A", 2)
	require.NoError(t, err)

	require.NoError(t, svc.ResetLine(ctx, order.ID, "SKU-A"))

	item, err := orderrepo.NewOrderRepository(suite.DB).GetItem(ctx, order.ID, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, 0, item.FulfilledQty)

	result, err := svc.Scan(ctx, order.ID, "SKU-A", 2)
	require.NoError(t, err)
	assert.True(t, result.LineComplete)
}

func TestConfirmPacked_RequiresItemsAndCompleteLines(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	empty := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-6",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
	})
	_, err := svc.ConfirmPacked(ctx, empty.ID)
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)

	short := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-7",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 3, FulfilledQty: 1}},
	})
	_, err = svc.ConfirmPacked(ctx, short.ID)
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Contains(t, err.Error(), "SKU-A")
}

func TestConfirmPacked_SalesOrderMovesToReadyToDispatch(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-8",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	packed, err := svc.ConfirmPacked(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyToDispatch, packed.Status)

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, movements, "sales orders emit movements on dispatch, not on packing")
}

func TestConfirmPacked_ManualFlowParksForAdmin(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	flow := domain.FlowManual
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "MAN-1",
		Channel:     domain.ChannelManual,
		FlowType:    &flow,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	packed, err := svc.ConfirmPacked(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingAdmin, packed.Status)
	require.NotNil(t, packed.ManualStage)
	assert.Equal(t, domain.StagePreparation, *packed.ManualStage)
}

func TestConfirmPacked_InternalFlowCompletesAndEmitsMovements(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "ING-20260812",
		Channel:     domain.ChannelIngress,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 4, FulfilledQty: 4}},
	})

	packed, err := svc.ConfirmPacked(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, packed.Status)

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, movementsrepo.DirectionIn, movements[0].Direction)
	assert.Equal(t, 4, movements[0].Quantity)
}

func TestConfirmDispatch_StampsNumberAndEmits(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-9",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusReadyToDispatch,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2, FulfilledQty: 2}},
	})

	dispatched, err := svc.ConfirmDispatch(ctx, order.ID, service.DispatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, dispatched.Status)
	assert.True(t, strings.HasPrefix(dispatched.OrderNumber, "EC-9-"))
	assert.Len(t, dispatched.OrderNumber, len("EC-9-")+14)

	stored, err := orderrepo.NewOrderRepository(suite.DB).GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatched.OrderNumber, stored.OrderNumber)
	require.NotNil(t, stored.DispatchedAt)

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, movementsrepo.DirectionOut, movements[0].Direction)
	assert.Equal(t, movementsrepo.PoolWarehouse, movements[0].Pool)
	assert.Equal(t, dispatched.OrderNumber, movements[0].OrderNumber)
}

func TestConfirmDispatch_HonorsFloorSplit(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "MAN-2",
		Channel:     domain.ChannelManual,
		Status:      domain.StatusReadyToDispatch,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 5, FulfilledQty: 5}},
	})

	_, err := svc.ConfirmDispatch(ctx, order.ID, service.DispatchOptions{
		FloorSplit: map[string]int{"SKU-A": 2},
	})
	require.NoError(t, err)

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	byPool := map[movementsrepo.Pool]int{}
	for _, mv := range movements {
		assert.Equal(t, movementsrepo.DirectionOut, mv.Direction)
		byPool[mv.Pool] = mv.Quantity
	}
	assert.Equal(t, 2, byPool[movementsrepo.PoolSalesFloor])
	assert.Equal(t, 3, byPool[movementsrepo.PoolWarehouse])
}

func TestConfirmDispatch_RequiresReadyToDispatch(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-10",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	_, err := svc.ConfirmDispatch(ctx, order.ID, service.DispatchOptions{})
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestConfirmDispatch_RejectsEmptyOrders(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicking()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-11",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusReadyToDispatch,
	})

	_, err := svc.ConfirmDispatch(ctx, order.ID, service.DispatchOptions{})
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)
}
