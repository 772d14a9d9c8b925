package domain_test

import (
	"testing"

	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/stretchr/testify/assert"
)

func flow(f domain.FlowType) *domain.FlowType { return &f }

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.Status
		to   domain.Status
		want bool
	}{
		{"pending to preparation", domain.StatusPending, domain.StatusInPreparation, true},
		{"preparation to ready", domain.StatusInPreparation, domain.StatusReadyToDispatch, true},
		{"preparation to awaiting admin", domain.StatusInPreparation, domain.StatusAwaitingAdmin, true},
		{"preparation to completed", domain.StatusInPreparation, domain.StatusCompleted, true},
		{"awaiting admin to pending docs", domain.StatusAwaitingAdmin, domain.StatusPendingDocs, true},
		{"pending docs to pending label", domain.StatusPendingDocs, domain.StatusPendingLabel, true},
		{"pending label to ready", domain.StatusPendingLabel, domain.StatusReadyToDispatch, true},
		{"ready to dispatched", domain.StatusReadyToDispatch, domain.StatusDispatched, true},

		{"pending straight to ready", domain.StatusPending, domain.StatusReadyToDispatch, false},
		{"ready back to preparation", domain.StatusReadyToDispatch, domain.StatusInPreparation, false},
		{"dispatched to anything", domain.StatusDispatched, domain.StatusPending, false},
		{"pending label back to docs", domain.StatusPendingLabel, domain.StatusPendingDocs, false},

		{"cancel from pending", domain.StatusPending, domain.StatusCancelled, true},
		{"cancel from preparation", domain.StatusInPreparation, domain.StatusCancelled, true},
		{"cancel from ready", domain.StatusReadyToDispatch, domain.StatusCancelled, true},
		{"cancel from dispatched", domain.StatusDispatched, domain.StatusCancelled, false},
		{"cancel from completed", domain.StatusCompleted, domain.StatusCancelled, false},
		{"cancel from cancelled", domain.StatusCancelled, domain.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, domain.StatusDispatched.IsTerminal())
	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
	assert.False(t, domain.StatusPending.IsTerminal())
	assert.False(t, domain.StatusReadyToDispatch.IsTerminal())
}

func TestPackedTarget(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
		want  domain.Status
	}{
		{"transfer completes", domain.Order{Channel: domain.ChannelTransfer}, domain.StatusCompleted},
		{"ingress completes", domain.Order{Channel: domain.ChannelIngress}, domain.StatusCompleted},
		{"replenishment completes", domain.Order{Channel: domain.ChannelReplenishment}, domain.StatusCompleted},
		{"manual flow needs admin", domain.Order{Channel: domain.ChannelManual, FlowType: flow(domain.FlowManual)}, domain.StatusAwaitingAdmin},
		{"marketplace goes to ready", domain.Order{Channel: domain.ChannelMarketplace}, domain.StatusReadyToDispatch},
		{"ecommerce goes to ready", domain.Order{Channel: domain.ChannelEcommerce}, domain.StatusReadyToDispatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.PackedTarget())
		})
	}
}

func TestChannelGroup(t *testing.T) {
	g, ok := domain.ChannelMarketplace.Group()
	assert.True(t, ok)
	assert.Equal(t, domain.GroupMarketplace, g)

	g, ok = domain.ChannelConsignment.Group()
	assert.True(t, ok)
	assert.Equal(t, domain.GroupConsignment, g)

	_, ok = domain.ChannelManual.Group()
	assert.False(t, ok)
	_, ok = domain.ChannelTransfer.Group()
	assert.False(t, ok)
}

func TestInternalFlow(t *testing.T) {
	assert.True(t, domain.ChannelTransfer.InternalFlow())
	assert.True(t, domain.ChannelIngress.InternalFlow())
	assert.True(t, domain.ChannelEgress.InternalFlow())
	assert.True(t, domain.ChannelReplenishment.InternalFlow())
	assert.False(t, domain.ChannelMarketplace.InternalFlow())
	assert.False(t, domain.ChannelManual.InternalFlow())
	assert.False(t, domain.ChannelExchange.InternalFlow())
}

func TestAllItemsComplete(t *testing.T) {
	order := domain.Order{
		Items: []*domain.Item{
			{SKU: "A", RequestedQty: 2, FulfilledQty: 2},
			{SKU: "B", RequestedQty: 3, FulfilledQty: 1},
		},
	}
	assert.False(t, order.AllItemsComplete())

	order.Items[1].FulfilledQty = 3
	assert.True(t, order.AllItemsComplete())

	empty := domain.Order{}
	assert.False(t, empty.HasItems())
	assert.True(t, order.HasItems())
}
