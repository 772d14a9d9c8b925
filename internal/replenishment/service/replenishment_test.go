package service_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	catalogrepo "github.com/pinoerp/wms-backend/internal/catalog/repository"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/replenishment/repository"
	"github.com/pinoerp/wms-backend/internal/replenishment/service"
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

func newReplenishment() *service.ReplenishmentService {
	catalog := catalogservice.NewCatalogService(
		suite.DB,
		catalogrepo.NewProductRepository(suite.DB),
		catalogrepo.NewAliasRepository(suite.DB),
		catalogrepo.NewPartyRepository(suite.DB),
		nil,
		nil,
		suite.Logger,
	)
	return service.NewReplenishmentService(
		suite.DB,
		repository.NewRuleRepository(suite.DB),
		orderrepo.NewOrderRepository(suite.DB),
		catalog,
		nil,
		suite.Logger,
	)
}

func seedProduct(t *testing.T, ctx context.Context, sku string, floor, warehouse int, hidden bool) {
	t.Helper()
	desc := "Seeded product " + sku
	_, err := catalogrepo.NewProductRepository(suite.DB).Upsert(ctx, suite.DB,
		&catalogrepo.Product{SKU: sku, Description: &desc, FloorQty: floor, WarehouseQty: warehouse, Hidden: hidden})
	require.NoError(t, err)
}

func TestSetRule_ValidatesAgainstCatalog(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newReplenishment()

	seedProduct(t, ctx, "SKU-A", 10, 50, false)

	rule, err := svc.SetRule(ctx, "SKU-A", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, rule.MinFloorQty)

	_, err = svc.SetRule(ctx, "SKU-MISSING", 5, 10)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = svc.SetRule(ctx, "SKU-A", -1, 10)
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	_, err = svc.SetRule(ctx, "SKU-A", 5, 0)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestSuggestions_FlagsLowFloorWithWarehouseStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newReplenishment()

	seedProduct(t, ctx, "SKU-LOW", 2, 30, false)
	seedProduct(t, ctx, "SKU-OK", 8, 30, false)
	seedProduct(t, ctx, "SKU-DRY", 0, 0, false)
	seedProduct(t, ctx, "SKU-HID", 1, 15, true)

	for _, sku := range []string{"SKU-LOW", "SKU-OK", "SKU-DRY", "SKU-HID"} {
		_, err := svc.SetRule(ctx, sku, 5, 10)
		require.NoError(t, err)
	}

	suggestions, err := svc.Suggestions(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, "SKU-HID", suggestions[0].SKU)
	assert.True(t, suggestions[0].Hidden)
	assert.Equal(t, "SKU-LOW", suggestions[1].SKU)
	assert.False(t, suggestions[1].Hidden)
	assert.Equal(t, 2, suggestions[1].FloorQty)
	assert.Equal(t, 30, suggestions[1].WarehouseQty)
}

func TestGenerateOrder_CapsRefillAtWarehouseStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newReplenishment()

	seedProduct(t, ctx, "SKU-A", 1, 30, false)
	seedProduct(t, ctx, "SKU-B", 0, 4, false)
	_, err := svc.SetRule(ctx, "SKU-A", 5, 10)
	require.NoError(t, err)
	_, err = svc.SetRule(ctx, "SKU-B", 5, 10)
	require.NoError(t, err)

	order, err := svc.GenerateOrder(ctx, []string{"SKU-A", "SKU-B"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelReplenishment, order.Channel)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "REP-"))
	require.Len(t, order.Items, 2)

	bysku := map[string]int{}
	for _, item := range order.Items {
		bysku[item.SKU] = item.RequestedQty
	}
	assert.Equal(t, 10, bysku["SKU-A"])
	assert.Equal(t, 4, bysku["SKU-B"], "refill capped to warehouse stock")
}

func TestGenerateOrder_RejectsSKUsNotSuggested(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newReplenishment()

	seedProduct(t, ctx, "SKU-OK", 8, 30, false)
	_, err := svc.SetRule(ctx, "SKU-OK", 5, 10)
	require.NoError(t, err)

	_, err = svc.GenerateOrder(ctx, []string{"SKU-OK"})
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	_, err = svc.GenerateOrder(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestDeleteRule(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newReplenishment()

	seedProduct(t, ctx, "SKU-A", 10, 50, false)
	_, err := svc.SetRule(ctx, "SKU-A", 5, 10)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRule(ctx, "SKU-A"))
	assert.ErrorIs(t, svc.DeleteRule(ctx, "SKU-A"), errors.ErrNotFound)

	_, err = svc.GetRule(ctx, "SKU-A")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
