package service_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/picklist/repository"
	"github.com/pinoerp/wms-backend/internal/picklist/service"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/messaging"
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

// recordingPublisher captures published batch events in memory
type recordingPublisher struct {
	events []messaging.BatchCreatedEvent
}

func (p *recordingPublisher) PublishBatchCreated(_ context.Context, data messaging.BatchCreatedEvent) {
	p.events = append(p.events, data)
}

func newPicklistService(pub service.BatchPublisher) *service.PicklistService {
	return service.NewPicklistService(
		suite.DB,
		repository.NewPicklistRepository(suite.DB),
		orderrepo.NewOrderRepository(suite.DB),
		pub,
		suite.Logger,
	)
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

func desc(s string) *string { return &s }

func TestConsolidate_AggregatesBySKUSorted(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicklistService(nil)

	a := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-1",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items: []*domain.Item{
			{SKU: "SKU-B", Description: desc("Socks"), RequestedQty: 2},
			{SKU: "SKU-A", Description: desc("Shirt"), RequestedQty: 1},
		},
	})
	b := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-2",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items: []*domain.Item{
			{SKU: "SKU-B", Description: desc("Socks"), RequestedQty: 3},
		},
	})

	lines, err := svc.Consolidate(ctx, []int64{a.ID, b.ID}, service.PolicyFullRequested)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "SKU-A", lines[0].SKU)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, []string{"EC-1"}, lines[0].OrderNumbers)

	assert.Equal(t, "SKU-B", lines[1].SKU)
	assert.Equal(t, 5, lines[1].Quantity)
	assert.ElementsMatch(t, []string{"EC-1", "EC-2"}, lines[1].OrderNumbers)
}

func TestConsolidate_OutstandingSkipsPickedLines(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicklistService(nil)

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-3",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items: []*domain.Item{
			{SKU: "SKU-A", RequestedQty: 4, FulfilledQty: 1},
			{SKU: "SKU-B", RequestedQty: 2, FulfilledQty: 2},
		},
	})

	lines, err := svc.Consolidate(ctx, []int64{order.ID}, service.PolicyOutstanding)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "SKU-A", lines[0].SKU)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestConsolidate_NoOrders(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	svc := newPicklistService(nil)

	_, err := svc.Consolidate(ctx, nil, service.PolicyFullRequested)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestCreateBatch_ClaimsPendingOrdersAndPublishes(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	pub := &recordingPublisher{}
	svc := newPicklistService(pub)

	pending := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-4",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items: []*domain.Item{
			{SKU: "SKU-A", RequestedQty: 2},
			{SKU: "SKU-B", RequestedQty: 1},
		},
	})
	inProgress := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-5",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	})
	empty := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-6",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
	})

	picklist, orders, err := svc.CreateBatch(ctx, []int64{pending.ID, inProgress.ID, empty.ID})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, pending.ID, orders[0].ID)
	assert.Equal(t, domain.StatusInPreparation, orders[0].Status)

	stored, err := orderrepo.NewOrderRepository(suite.DB).GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInPreparation, stored.Status)
	require.NotNil(t, stored.PicklistID)
	assert.Equal(t, picklist.ID, *stored.PicklistID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, picklist.ID, pub.events[0].BatchID)
	assert.Equal(t, 2, pub.events[0].LineCount)
	assert.Equal(t, 3, pub.events[0].TotalUnits)
}

func TestCreateBatch_NoEligibleOrders(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicklistService(nil)

	done := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-7",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusDispatched,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	_, _, err := svc.CreateBatch(ctx, []int64{done.ID, 99999})
	assert.ErrorIs(t, err, errors.ErrNoValidOrders)
}

func TestConsolidateBatch_CountsOutstanding(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicklistService(nil)

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-8",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 5}},
	})

	picklist, _, err := svc.CreateBatch(ctx, []int64{order.ID})
	require.NoError(t, err)

	repo := orderrepo.NewOrderRepository(suite.DB)
	ok, err := repo.IncrementFulfilled(ctx, suite.DB, order.ID, "SKU-A", 2)
	require.NoError(t, err)
	require.True(t, ok)

	lines, err := svc.ConsolidateBatch(ctx, picklist.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	_, err = svc.ConsolidateBatch(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGetProgress(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newPicklistService(nil)

	a := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-9",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2}},
	})
	b := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-10",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
		Items:       []*domain.Item{{SKU: "SKU-B", RequestedQty: 3}},
	})

	picklist, _, err := svc.CreateBatch(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)

	repo := orderrepo.NewOrderRepository(suite.DB)
	ok, err := repo.IncrementFulfilled(ctx, suite.DB, a.ID, "SKU-A", 2)
	require.NoError(t, err)
	require.True(t, ok)

	progress, err := svc.GetProgress(ctx, picklist.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Orders)
	assert.Equal(t, 0, progress.OrdersComplete, "orders count only once they leave preparation")
	assert.Equal(t, 2, progress.Lines)
	assert.Equal(t, 1, progress.LinesComplete)
	assert.Equal(t, 5, progress.UnitsRequested)
	assert.Equal(t, 2, progress.UnitsFulfilled)

	err = suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.UpdateStatus(ctx, tx, a.ID, domain.StatusInPreparation, domain.StatusReadyToDispatch)
	})
	require.NoError(t, err)

	progress, err = svc.GetProgress(ctx, picklist.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.OrdersComplete)
}
