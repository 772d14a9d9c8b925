package service_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	catalogrepo "github.com/pinoerp/wms-backend/internal/catalog/repository"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	movementsservice "github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/stockflows/service"
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

func newStockFlows() *service.StockFlowService {
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
	return service.NewStockFlowService(suite.DB, orders, catalog, ledger, nil, suite.Logger)
}

func seedProduct(t *testing.T, ctx context.Context, sku string) {
	t.Helper()
	desc := "Seeded product " + sku
	_, err := catalogrepo.NewProductRepository(suite.DB).Upsert(ctx, suite.DB,
		&catalogrepo.Product{SKU: sku, Description: &desc})
	require.NoError(t, err)
}

func TestOpenWorkingOrder_ReusesSameDayReference(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	first, err := svc.OpenWorkingOrder(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	assert.Equal(t, "TR-"+time.Now().Format("20060102"), first.OrderNumber)
	assert.Equal(t, domain.StatusInPreparation, first.Status)

	second, err := svc.OpenWorkingOrder(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.OpenWorkingOrder(ctx, domain.ChannelEcommerce)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestAddByCode_MergesRepeatedScans(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	seedProduct(t, ctx, "SKU-A")
	order, err := svc.OpenWorkingOrder(ctx, domain.ChannelIngress)
	require.NoError(t, err)

	item, err := svc.AddByCode(ctx, order.ID, "SKU-A", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.RequestedQty)
	assert.Equal(t, 2, item.FulfilledQty)

	item, err = svc.AddByCode(ctx, order.ID, "SKU-A", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.RequestedQty)
	assert.Equal(t, 5, item.FulfilledQty)

	_, err = svc.AddByCode(ctx, order.ID, "NOPE", 1)
	assert.ErrorIs(t, err, errors.ErrUnknownBarcode)

	_, err = svc.AddByCode(ctx, order.ID, "SKU-A", 0)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestAddByCode_OnlyInternalFlows(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	seedProduct(t, ctx, "SKU-A")
	repo := orderrepo.NewOrderRepository(suite.DB)
	order := &domain.Order{
		OrderNumber: "EC-1",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	}
	require.NoError(t, suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.Create(ctx, tx, order)
	}))

	_, err := svc.AddByCode(ctx, order.ID, "SKU-A", 1)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestFinalize_TransferEmitsPairAndCloses(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	seedProduct(t, ctx, "SKU-A")
	order, err := svc.OpenWorkingOrder(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	workingNumber := order.OrderNumber

	_, err = svc.AddByCode(ctx, order.ID, "SKU-A", 4)
	require.NoError(t, err)

	closed, err := svc.Finalize(ctx, order.ID, service.FinalizeOptions{
		SourcePool: movementsrepo.PoolSalesFloor,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, closed.Status)
	assert.True(t, strings.HasPrefix(closed.OrderNumber, workingNumber+"-"))

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	byDirection := map[movementsrepo.Direction]movementsrepo.Pool{}
	for _, mv := range movements {
		assert.Equal(t, 4, mv.Quantity)
		byDirection[mv.Direction] = mv.Pool
	}
	assert.Equal(t, movementsrepo.PoolSalesFloor, byDirection[movementsrepo.DirectionOut])
	assert.Equal(t, movementsrepo.PoolWarehouse, byDirection[movementsrepo.DirectionIn])

	// A new working order can open under the same day reference
	reopened, err := svc.OpenWorkingOrder(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, reopened.ID)
}

func TestFinalize_EmptyOrderRejected(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	order, err := svc.OpenWorkingOrder(ctx, domain.ChannelEgress)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, order.ID, service.FinalizeOptions{})
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)
}

func TestFinalize_EgressRecordsPartyAndSplit(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	seedProduct(t, ctx, "SKU-A")
	order, err := svc.OpenWorkingOrder(ctx, domain.ChannelEgress)
	require.NoError(t, err)

	_, err = svc.AddByCode(ctx, order.ID, "SKU-A", 5)
	require.NoError(t, err)

	name := "Textil Norte"
	code := "P0001"
	closed, err := svc.Finalize(ctx, order.ID, service.FinalizeOptions{
		FloorSplit: map[string]int{"SKU-A": 2},
		PartyName:  &name,
		PartyCode:  &code,
	})
	require.NoError(t, err)
	require.NotNil(t, closed.CustomerName)
	assert.Equal(t, name, *closed.CustomerName)

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

func TestFinalize_ResolvesPartyCodeFromName(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	parties := catalogrepo.NewPartyRepository(suite.DB)
	require.NoError(t, parties.UpsertSupplier(ctx, suite.DB, &catalogrepo.Party{Code: "P0009", Name: "Hilados Oeste"}))

	seedProduct(t, ctx, "SKU-A")
	order, err := svc.OpenWorkingOrder(ctx, domain.ChannelIngress)
	require.NoError(t, err)
	_, err = svc.AddByCode(ctx, order.ID, "SKU-A", 3)
	require.NoError(t, err)

	name := "Hilados Oeste"
	closed, err := svc.Finalize(ctx, order.ID, service.FinalizeOptions{PartyName: &name})
	require.NoError(t, err)
	require.NotNil(t, closed.CustomerCode)
	assert.Equal(t, "P0009", *closed.CustomerCode)

	movements, err := movementsrepo.NewMovementRepository(suite.DB).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "P0009", movements[0].ClientCode)
}

func TestListWorking_FiltersByChannelAndStatus(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newStockFlows()

	seedProduct(t, ctx, "SKU-A")
	transfer, err := svc.OpenWorkingOrder(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	_, err = svc.OpenWorkingOrder(ctx, domain.ChannelIngress)
	require.NoError(t, err)

	// a finalized order leaves the working set
	egress, err := svc.OpenWorkingOrder(ctx, domain.ChannelEgress)
	require.NoError(t, err)
	_, err = svc.AddByCode(ctx, egress.ID, "SKU-A", 1)
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, egress.ID, service.FinalizeOptions{})
	require.NoError(t, err)

	working, err := svc.ListWorking(ctx, domain.ChannelTransfer)
	require.NoError(t, err)
	require.Len(t, working, 1)
	assert.Equal(t, transfer.ID, working[0].ID)

	working, err = svc.ListWorking(ctx, domain.ChannelEgress)
	require.NoError(t, err)
	assert.Empty(t, working)

	_, err = svc.ListWorking(ctx, domain.ChannelEcommerce)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}
