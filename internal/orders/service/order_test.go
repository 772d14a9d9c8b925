package service_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/orders/service"
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

func newOrders() *service.OrderService {
	return service.NewOrderService(suite.DB, orderrepo.NewOrderRepository(suite.DB), nil, suite.Logger)
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

func str(s string) *string { return &s }

func TestCreateOrder_RetriesDuplicateNumberWithSuffix(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newOrders()

	first, err := svc.CreateOrder(ctx, &domain.Order{
		OrderNumber: "EC-1",
		Channel:     domain.ChannelEcommerce,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "EC-1", first.OrderNumber)

	second, err := svc.CreateOrder(ctx, &domain.Order{
		OrderNumber: "EC-1",
		Channel:     domain.ChannelEcommerce,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(second.OrderNumber, "EC-1-"))
	assert.Len(t, second.OrderNumber, len("EC-1-")+14)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMoveStatus_RejectsEmptyOrders(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newOrders()

	pending := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-10",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusPending,
	})
	_, err := svc.MoveStatus(ctx, pending.ID, domain.StatusInPreparation)
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)

	// an order stripped of its lines after batching cannot advance either
	stripped := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-11",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
	})
	_, err = svc.MoveStatus(ctx, stripped.ID, domain.StatusReadyToDispatch)
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)
}

func TestMoveStatus_BlocksDispatchQueueOnShortfall(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newOrders()

	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-12",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items: []*domain.Item{
			{SKU: "SKU-A", RequestedQty: 3, FulfilledQty: 1},
			{SKU: "SKU-B", RequestedQty: 2, FulfilledQty: 2},
		},
	})

	_, err := svc.MoveStatus(ctx, order.ID, domain.StatusReadyToDispatch)
	require.ErrorIs(t, err, errors.ErrConflict)
	assert.Contains(t, err.Error(), "SKU-A")

	complete := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "EC-13",
		Channel:     domain.ChannelEcommerce,
		Status:      domain.StatusInPreparation,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 2, FulfilledQty: 2}},
	})
	moved, err := svc.MoveStatus(ctx, complete.ID, domain.StatusReadyToDispatch)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyToDispatch, moved.Status)
}

func TestAttachDocs_WalksPaperworkAndStampsCloseout(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)
	svc := newOrders()

	flow := domain.FlowManual
	stage := domain.StagePreparation
	order := seedOrder(t, ctx, &domain.Order{
		OrderNumber: "MAN-1",
		Channel:     domain.ChannelManual,
		FlowType:    &flow,
		ManualStage: &stage,
		Status:      domain.StatusAwaitingAdmin,
		Items:       []*domain.Item{{SKU: "SKU-A", RequestedQty: 1, FulfilledQty: 1}},
	})

	// invoice alone leaves the order waiting on a label
	updated, err := svc.AttachDocs(ctx, order.ID, nil, str("inv/MAN-1.pdf"), str("0001-00001234"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingLabel, updated.Status)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ManualStage)
	assert.Equal(t, domain.StagePreparation, *stored.ManualStage)

	// the label completes the paperwork and closes out the manual stage
	updated, err = svc.AttachDocs(ctx, order.ID, str("labels/MAN-1.pdf"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyToDispatch, updated.Status)
	require.NotNil(t, updated.ManualStage)
	assert.Equal(t, domain.StageCloseout, *updated.ManualStage)

	stored, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ManualStage)
	assert.Equal(t, domain.StageCloseout, *stored.ManualStage)
}
