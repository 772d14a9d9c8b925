package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderFixture represents test order data
type OrderFixture struct {
	ID           int64
	OrderNumber  string
	Channel      string
	FlowType     string
	ManualStage  string
	Status       string
	CustomerName string
	CustomerCode string
	ShipmentID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItemFixture represents test order item data
type OrderItemFixture struct {
	ID           int64
	OrderID      int64
	SKU          string
	Description  string
	RequestedQty int
	FulfilledQty int
}

// ProductFixture represents test product catalog data
type ProductFixture struct {
	SKU          string
	EAN          string
	Description  string
	FloorQty     int
	WarehouseQty int
	Hidden       bool
}

// MovementFixture represents test stock movement data
type MovementFixture struct {
	ID          int64
	OrderID     int64
	OrderNumber string
	ClientCode  string
	SKU         string
	Quantity    int
	Pool        string
	Direction   string
	MovedAt     time.Time
	Exported    bool
}

// ExchangeFixture represents test exchange data
type ExchangeFixture struct {
	ID              string
	OriginalOrderID int64
	Modality        string
	IntakeStatus    string
	OutboundStatus  string
	CreatedAt       time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Order creates an order fixture with defaults
func (f *FixtureFactory) Order(opts ...func(*OrderFixture)) OrderFixture {
	seq := f.nextSeq()

	order := OrderFixture{
		ID:           int64(seq),
		OrderNumber:  fmt.Sprintf("TEST-%05d", seq),
		Channel:      "MANUAL",
		FlowType:     "MANUAL",
		Status:       "PENDING",
		CustomerName: fmt.Sprintf("Customer %d", seq),
		CustomerCode: fmt.Sprintf("C%04d", seq),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&order)
	}

	return order
}

// WithNumber sets the order number
func WithNumber(number string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.OrderNumber = number
	}
}

// WithChannel sets the order channel
func WithChannel(channel string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.Channel = channel
	}
}

// WithOrderStatus sets the order status
func WithOrderStatus(status string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.Status = status
	}
}

// WithShipment sets the marketplace shipment reference
func WithShipment(shipmentID string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.ShipmentID = shipmentID
	}
}

// Item creates an order item fixture with defaults
func (f *FixtureFactory) Item(orderID int64, opts ...func(*OrderItemFixture)) OrderItemFixture {
	seq := f.nextSeq()

	item := OrderItemFixture{
		ID:           int64(seq),
		OrderID:      orderID,
		SKU:          fmt.Sprintf("SKU-%04d", seq),
		Description:  fmt.Sprintf("Test product %d", seq),
		RequestedQty: 1,
		FulfilledQty: 0,
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithSKU sets the item SKU
func WithSKU(sku string) func(*OrderItemFixture) {
	return func(i *OrderItemFixture) {
		i.SKU = sku
	}
}

// WithQuantities sets the requested and fulfilled quantities
func WithQuantities(requested, fulfilled int) func(*OrderItemFixture) {
	return func(i *OrderItemFixture) {
		i.RequestedQty = requested
		i.FulfilledQty = fulfilled
	}
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	product := ProductFixture{
		SKU:          fmt.Sprintf("SKU-%04d", seq),
		EAN:          fmt.Sprintf("779%010d", seq),
		Description:  fmt.Sprintf("Test product %d", seq),
		FloorQty:     10,
		WarehouseQty: 50,
	}

	for _, opt := range opts {
		opt(&product)
	}

	return product
}

// WithStock sets the product stock quantities
func WithStock(floor, warehouse int) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.FloorQty = floor
		p.WarehouseQty = warehouse
	}
}

// WithHidden marks the product as hidden
func WithHidden() func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Hidden = true
	}
}

// Movement creates a stock movement fixture with defaults
func (f *FixtureFactory) Movement(orderID int64, opts ...func(*MovementFixture)) MovementFixture {
	seq := f.nextSeq()

	mv := MovementFixture{
		ID:          int64(seq),
		OrderID:     orderID,
		OrderNumber: fmt.Sprintf("TEST-%05d", orderID),
		ClientCode:  "C0001",
		SKU:         fmt.Sprintf("SKU-%04d", seq),
		Quantity:    1,
		Pool:        "WAREHOUSE",
		Direction:   "OUT",
		MovedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&mv)
	}

	return mv
}

// WithPool sets the movement stock pool
func WithPool(pool string) func(*MovementFixture) {
	return func(m *MovementFixture) {
		m.Pool = pool
	}
}

// WithExported marks the movement as already exported
func WithExported() func(*MovementFixture) {
	return func(m *MovementFixture) {
		m.Exported = true
	}
}

// Exchange creates an exchange fixture with defaults
func (f *FixtureFactory) Exchange(originalOrderID int64, opts ...func(*ExchangeFixture)) ExchangeFixture {
	ex := ExchangeFixture{
		ID:              uuid.New().String(),
		OriginalOrderID: originalOrderID,
		Modality:        "DEFERRED",
		IntakeStatus:    "PENDING",
		OutboundStatus:  "PENDING",
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&ex)
	}

	return ex
}

// WithModality sets the exchange modality
func WithModality(modality string) func(*ExchangeFixture) {
	return func(e *ExchangeFixture) {
		e.Modality = modality
	}
}

// DefaultTestProducts returns a small catalog for integration tests
func DefaultTestProducts(factory *FixtureFactory) []ProductFixture {
	return []ProductFixture{
		factory.Product(WithStock(5, 40)),
		factory.Product(WithStock(0, 12)),
		factory.Product(WithStock(20, 0)),
		factory.Product(WithHidden()),
	}
}
