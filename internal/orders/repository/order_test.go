package repository_test

import (
	"context"
	"log"
	"math/rand"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/orders/repository"
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

func createOrder(t *testing.T, ctx context.Context, repo *repository.OrderRepository, order *domain.Order) *domain.Order {
	t.Helper()
	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.Create(ctx, tx, order)
	})
	require.NoError(t, err)
	return order
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-1001",
		Channel:     domain.ChannelManual,
		Status:      domain.StatusPending,
		Items: []*domain.Item{
			{SKU: "SKU-A", RequestedQty: 3},
			{SKU: "SKU-B", RequestedQty: 1},
		},
	})
	require.NotZero(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", got.OrderNumber)
	assert.Len(t, got.Items, 2)

	byNumber, err := repo.GetByNumber(ctx, "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)

	_, err = repo.GetByID(ctx, 99999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestOrderRepository_DuplicateNumber(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-DUP", Channel: domain.ChannelManual, Status: domain.StatusPending,
	})

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.Create(ctx, tx, &domain.Order{
			OrderNumber: "ORD-DUP", Channel: domain.ChannelManual, Status: domain.StatusPending,
		})
	})
	assert.True(t, errors.Is(err, errors.ErrDuplicateNumber))
}

func TestOrderRepository_UpsertItemMerges(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-MERGE", Channel: domain.ChannelManual, Status: domain.StatusPending,
	})

	for i := 0; i < 3; i++ {
		err := repo.UpsertItem(ctx, suite.DB, &domain.Item{
			OrderID: order.ID, SKU: "SKU-A", RequestedQty: 2,
		})
		require.NoError(t, err)
	}

	item, err := repo.GetItem(ctx, order.ID, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, 6, item.RequestedQty)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

// Random increment sequences must never push fulfilled past requested:
// the losing call reports excess and leaves the row untouched.
func TestOrderRepository_IncrementFulfilledNeverExceeds(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	const requested = 10
	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-EXCESS", Channel: domain.ChannelManual, Status: domain.StatusInPreparation,
		Items: []*domain.Item{{SKU: "SKU-A", RequestedQty: requested}},
	})

	rng := rand.New(rand.NewSource(42))
	applied := 0
	for i := 0; i < 50; i++ {
		delta := rng.Intn(4) + 1
		ok, err := repo.IncrementFulfilled(ctx, suite.DB, order.ID, "SKU-A", delta)
		require.NoError(t, err)
		if ok {
			applied += delta
		}

		item, err := repo.GetItem(ctx, order.ID, "SKU-A")
		require.NoError(t, err)
		assert.Equal(t, applied, item.FulfilledQty)
		assert.LessOrEqual(t, item.FulfilledQty, requested)
	}
	assert.LessOrEqual(t, applied, requested)
}

func TestOrderRepository_IncrementFulfilledExactFill(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-FILL", Channel: domain.ChannelManual, Status: domain.StatusInPreparation,
		Items: []*domain.Item{{SKU: "SKU-A", RequestedQty: 5}},
	})

	ok, err := repo.IncrementFulfilled(ctx, suite.DB, order.ID, "SKU-A", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IncrementFulfilled(ctx, suite.DB, order.ID, "SKU-A", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	item, err := repo.GetItem(ctx, order.ID, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, 5, item.FulfilledQty)
}

func TestOrderRepository_UpdateStatusGuardsStaleReads(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-STATE", Channel: domain.ChannelManual, Status: domain.StatusPending,
	})

	err := repo.UpdateStatus(ctx, suite.DB, order.ID, domain.StatusPending, domain.StatusInPreparation)
	require.NoError(t, err)

	// Second mover with the stale PENDING view loses
	err = repo.UpdateStatus(ctx, suite.DB, order.ID, domain.StatusPending, domain.StatusInPreparation)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInPreparation, got.Status)
}

func TestOrderRepository_UpdateStatusStampsDispatch(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-DISP", Channel: domain.ChannelManual, Status: domain.StatusReadyToDispatch,
	})

	err := repo.UpdateStatus(ctx, suite.DB, order.ID, domain.StatusReadyToDispatch, domain.StatusDispatched)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DispatchedAt)
}

func TestOrderRepository_AssignPicklistClaimsOnlyPending(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	pending := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-P1", Channel: domain.ChannelManual, Status: domain.StatusPending,
	})
	busy := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-P2", Channel: domain.ChannelManual, Status: domain.StatusInPreparation,
	})

	_, err := suite.RawDB.ExecContext(ctx, `INSERT INTO picklists (id, created_by) VALUES ('pl-1', 'tester')`)
	require.NoError(t, err)

	var claimed int64
	err = suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		claimed, err = repo.AssignPicklist(ctx, tx, "pl-1", []int64{pending.ID, busy.ID})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), claimed)
}

func TestOrderRepository_DeleteKeepsMovements(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)
	movements := movementsrepo.NewMovementRepository(suite.DB)

	order := createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ORD-GONE", Channel: domain.ChannelManual, Status: domain.StatusCancelled,
		Items: []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	})

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return movements.InsertBatch(ctx, tx, []*movementsrepo.Movement{{
			OrderID:     &order.ID,
			OrderNumber: order.OrderNumber,
			ClientCode:  "GEN",
			SKU:         "SKU-A",
			Quantity:    1,
			Pool:        movementsrepo.PoolWarehouse,
			Direction:   movementsrepo.DirectionOut,
		}})
	})
	require.NoError(t, err)

	err = suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.Delete(ctx, tx, order.ID)
	})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, order.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Audit trail survives with the order reference cleared
	list, _, err := movements.List(ctx, movementsrepo.ListFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].OrderID)
	assert.Equal(t, "ORD-GONE", list[0].OrderNumber)
}

func TestOrderRepository_CountOpenInChannels(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	repo := repository.NewOrderRepository(suite.DB)

	createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ML-1", Channel: domain.ChannelMarketplace, Status: domain.StatusPending,
	})
	createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "ML-2", Channel: domain.ChannelMarketplace, Status: domain.StatusDispatched,
	})
	createOrder(t, ctx, repo, &domain.Order{
		OrderNumber: "MAN-1", Channel: domain.ChannelManual, Status: domain.StatusPending,
	})

	count, err := repo.CountOpenInChannels(ctx, suite.DB, domain.GroupChannels(domain.GroupMarketplace))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
