package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Order lifecycle events
	EventOrderCreated      = "orders.created"
	EventOrderStatusMoved  = "orders.status.moved"
	EventOrderDispatched   = "orders.dispatched"
	EventOrderCancelled    = "orders.cancelled"
	EventOrderDeleted      = "orders.deleted"

	// Pick batch events
	EventBatchCreated = "picklist.batch.created"

	// Movement / export events
	EventMovementsEmitted = "movements.emitted"
	EventExportEligible   = "movements.export_eligible"
	EventExportCompleted  = "movements.export_completed"
	EventExportReopened   = "movements.export_reopened"

	// Exchange events
	EventExchangeRegistered     = "exchanges.registered"
	EventExchangeReturnReceived = "exchanges.return.received"

	// Marketplace intake events
	EventMarketplaceOrderImported = "marketplace.order.imported"
)

// Exchange names
const (
	ExchangeOrderEvents       = "orders.events"
	ExchangeMovementEvents    = "movements.events"
	ExchangeExchangeEvents    = "exchanges.events"
	ExchangeMarketplaceEvents = "marketplace.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Order Events

// OrderCreatedEvent is published when an order enters the system
type OrderCreatedEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Channel     string `json:"channel"`
	FlowType    string `json:"flow_type,omitempty"`
	ItemCount   int    `json:"item_count"`
}

// OrderStatusMovedEvent is published on every lifecycle transition
type OrderStatusMovedEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Channel     string `json:"channel"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	Operator    string `json:"operator,omitempty"`
}

// OrderDispatchedEvent is published when an order is dispatched and its
// stock movements have been written.
type OrderDispatchedEvent struct {
	OrderID       int64  `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Channel       string `json:"channel"`
	MovementCount int    `json:"movement_count"`
	Operator      string `json:"operator,omitempty"`
}

// OrderCancelledEvent is published when an order is cancelled
type OrderCancelledEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	FromStatus  string `json:"from_status"`
	Reason      string `json:"reason,omitempty"`
}

// OrderDeletedEvent is published when an order is removed
type OrderDeletedEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Forced      bool   `json:"forced"`
	Operator    string `json:"operator,omitempty"`
}

// Pick Batch Events

// BatchCreatedEvent is published when a pick batch is assembled
type BatchCreatedEvent struct {
	BatchID    string  `json:"batch_id"`
	OrderIDs   []int64 `json:"order_ids"`
	LineCount  int     `json:"line_count"`
	TotalUnits int     `json:"total_units"`
}

// Movement Events

// MovementsEmittedEvent is published after a dispatch or flow finalization
// writes its stock movements.
type MovementsEmittedEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Count       int    `json:"count"`
}

// ExportEligibleEvent is published when the last open order of a channel
// group reaches a terminal state and the group's movements can be exported.
type ExportEligibleEvent struct {
	Group       string `json:"group"`
	TriggeredBy string `json:"triggered_by"` // order number that closed the group
}

// ExportCompletedEvent is published when the export worker has flagged a
// batch of movements as exported.
type ExportCompletedEvent struct {
	Group    string  `json:"group,omitempty"`
	Count    int     `json:"count"`
	Batch    string  `json:"batch"`
	Duration float64 `json:"duration_seconds"`
}

// ExportReopenedEvent is published when movements are administratively
// returned to the unexported set.
type ExportReopenedEvent struct {
	MovementIDs []int64 `json:"movement_ids"`
	Operator    string  `json:"operator"`
	Reason      string  `json:"reason,omitempty"`
}

// Exchange Events

// ExchangeRegisteredEvent is published when an exchange is registered
type ExchangeRegisteredEvent struct {
	ExchangeID      string `json:"exchange_id"`
	OriginalOrderID int64  `json:"original_order_id"`
	Modality        string `json:"modality"`
	LineCount       int    `json:"line_count"`
}

// ExchangeReturnReceivedEvent is published when returned merchandise is
// processed at intake.
type ExchangeReturnReceivedEvent struct {
	ExchangeID     string `json:"exchange_id"`
	Condition      string `json:"condition"`
	Restocked      bool   `json:"restocked"`
	SatelliteOrder string `json:"satellite_order,omitempty"`
}

// Marketplace Events

// MarketplaceOrderImportedEvent is published when the sync creates an order
// from a marketplace shipment.
type MarketplaceOrderImportedEvent struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	ItemCount  int    `json:"item_count"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
