// Package domain holds the order aggregate and its lifecycle rules.
package domain

import (
	"time"
)

// Status is an order lifecycle state
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusInPreparation   Status = "IN_PREPARATION"
	StatusAwaitingAdmin   Status = "AWAITING_ADMIN"
	StatusPendingDocs     Status = "PENDING_DOCS"
	StatusPendingLabel    Status = "PENDING_LABEL"
	StatusReadyToDispatch Status = "READY_TO_DISPATCH"
	StatusDispatched      Status = "DISPATCHED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

// Channel identifies where an order originated
type Channel string

const (
	ChannelMarketplace   Channel = "MARKETPLACE"
	ChannelEcommerce     Channel = "ECOMMERCE"
	ChannelManual        Channel = "MANUAL"
	ChannelTransfer      Channel = "TRANSFER"
	ChannelIngress       Channel = "INGRESS"
	ChannelEgress        Channel = "EGRESS"
	ChannelReplenishment Channel = "REPLENISHMENT"
	ChannelConsignment   Channel = "CONSIGNMENT"
	ChannelExchange      Channel = "EXCHANGE"
)

// FlowType distinguishes how a pickable order moves through packing
type FlowType string

const (
	FlowMarketplace FlowType = "MARKETPLACE"
	FlowEcommerce   FlowType = "ECOMMERCE"
	FlowManual      FlowType = "MANUAL"
)

// ManualStage is the sub-stage of a manual-flow order
type ManualStage string

const (
	StagePreparation ManualStage = "PREPARATION"
	StageCloseout    ManualStage = "CLOSEOUT"
)

// ExportGroup identifies a channel group whose movements are exported as a
// unit once every order in the group has settled.
type ExportGroup string

const (
	GroupMarketplace ExportGroup = "MARKETPLACE"
	GroupConsignment ExportGroup = "CONSIGNMENT"
)

// Order is the central aggregate. Every unit of work the warehouse handles
// is an order, whether it came from a sales channel or an internal flow.
type Order struct {
	ID                 int64       `db:"id" json:"id"`
	OrderNumber        string      `db:"order_number" json:"order_number"`
	Channel            Channel     `db:"channel" json:"channel"`
	FlowType           *FlowType   `db:"flow_type" json:"flow_type,omitempty"`
	ManualStage        *ManualStage `db:"manual_stage" json:"manual_stage,omitempty"`
	Status             Status      `db:"status" json:"status"`
	CustomerName       *string     `db:"customer_name" json:"customer_name,omitempty"`
	CustomerCode       *string     `db:"customer_code" json:"customer_code,omitempty"`
	LogisticsType      *string     `db:"logistics_type" json:"logistics_type,omitempty"`
	TrackingCode       *string     `db:"tracking_code" json:"tracking_code,omitempty"`
	ShipmentID         *string     `db:"shipment_id" json:"shipment_id,omitempty"`
	MarketplaceOrderID *string     `db:"marketplace_order_id" json:"marketplace_order_id,omitempty"`
	PicklistID         *string     `db:"picklist_id" json:"picklist_id,omitempty"`
	InvoiceNumber      *string     `db:"invoice_number" json:"invoice_number,omitempty"`
	LabelRef           *string     `db:"label_ref" json:"label_ref,omitempty"`
	InvoiceRef         *string     `db:"invoice_ref" json:"invoice_ref,omitempty"`
	Notes              *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
	DispatchedAt       *time.Time  `db:"dispatched_at" json:"dispatched_at,omitempty"`

	Items   []*Item   `db:"-" json:"items,omitempty"`
	Parcels []*Parcel `db:"-" json:"parcels,omitempty"`
}

// Item is a single SKU line on an order
type Item struct {
	ID           int64   `db:"id" json:"id"`
	OrderID      int64   `db:"order_id" json:"order_id"`
	SKU          string  `db:"sku" json:"sku"`
	Description  *string `db:"description" json:"description,omitempty"`
	RequestedQty int     `db:"requested_qty" json:"requested_qty"`
	FulfilledQty int     `db:"fulfilled_qty" json:"fulfilled_qty"`
}

// Complete reports whether the line is fully picked
func (i *Item) Complete() bool {
	return i.FulfilledQty >= i.RequestedQty
}

// Parcel is one physical package of a packed order
type Parcel struct {
	ID       int64   `db:"id" json:"id"`
	OrderID  int64   `db:"order_id" json:"order_id"`
	Seq      int     `db:"seq" json:"seq"`
	WeightKg float64 `db:"weight_kg" json:"weight_kg"`
	LengthCm *int    `db:"length_cm" json:"length_cm,omitempty"`
	WidthCm  *int    `db:"width_cm" json:"width_cm,omitempty"`
	HeightCm *int    `db:"height_cm" json:"height_cm,omitempty"`
}

// TotalParcelWeight sums the declared parcel weights in kilograms
func (o *Order) TotalParcelWeight() float64 {
	var total float64
	for _, p := range o.Parcels {
		total += p.WeightKg
	}
	return total
}

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDispatched, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OpenStatuses are the states that count as "still in flight" when deciding
// whether a channel group's movement export can run.
func OpenStatuses() []Status {
	return []Status{
		StatusPending,
		StatusInPreparation,
		StatusAwaitingAdmin,
		StatusPendingDocs,
		StatusPendingLabel,
		StatusReadyToDispatch,
	}
}

// InternalFlow reports whether the channel is an internal stock flow whose
// orders finish in COMPLETED rather than DISPATCHED.
func (c Channel) InternalFlow() bool {
	switch c {
	case ChannelTransfer, ChannelIngress, ChannelEgress, ChannelReplenishment:
		return true
	}
	return false
}

// Group returns the export group the channel belongs to, if any.
// Only the marketplace and consignment channels gate the export queue.
func (c Channel) Group() (ExportGroup, bool) {
	switch c {
	case ChannelMarketplace:
		return GroupMarketplace, true
	case ChannelConsignment:
		return GroupConsignment, true
	}
	return "", false
}

// GroupChannels returns the channels belonging to an export group
func GroupChannels(g ExportGroup) []Channel {
	switch g {
	case GroupMarketplace:
		return []Channel{ChannelMarketplace}
	case GroupConsignment:
		return []Channel{ChannelConsignment}
	}
	return nil
}

// transitions enumerates the allowed lifecycle moves. Cancellation is
// handled separately: any non-terminal state may cancel.
var transitions = map[Status][]Status{
	StatusPending:         {StatusInPreparation},
	StatusInPreparation:   {StatusReadyToDispatch, StatusAwaitingAdmin, StatusCompleted},
	StatusAwaitingAdmin:   {StatusPendingDocs, StatusPendingLabel, StatusReadyToDispatch},
	StatusPendingDocs:     {StatusPendingLabel, StatusReadyToDispatch},
	StatusPendingLabel:    {StatusReadyToDispatch},
	StatusReadyToDispatch: {StatusDispatched},
}

// CanTransition reports whether an order in state from may move to state to.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.IsTerminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PackedTarget returns the state an order enters when packing is confirmed.
// Manual-flow sales orders park in AWAITING_ADMIN for paperwork; internal
// flows complete; everything else is ready for dispatch.
func (o *Order) PackedTarget() Status {
	if o.Channel.InternalFlow() {
		return StatusCompleted
	}
	if o.FlowType != nil && *o.FlowType == FlowManual {
		return StatusAwaitingAdmin
	}
	return StatusReadyToDispatch
}

// HasItems reports whether the order carries at least one line
func (o *Order) HasItems() bool {
	return len(o.Items) > 0
}

// AllItemsComplete reports whether every line is fully picked
func (o *Order) AllItemsComplete() bool {
	for _, it := range o.Items {
		if !it.Complete() {
			return false
		}
	}
	return len(o.Items) > 0
}
