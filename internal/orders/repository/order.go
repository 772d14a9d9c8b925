package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// OrderRepository provides access to orders, their lines and parcels
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ListFilter narrows List results
type ListFilter struct {
	Status     *domain.Status
	Channel    *domain.Channel
	PicklistID *string
	Search     string
	Page       int
	PageSize   int
}

// Create inserts the order and its lines inside the given transaction.
// A number collision surfaces as a DUPLICATE_NUMBER error so the caller
// can retry with a suffixed number.
func (r *OrderRepository) Create(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			order_number, channel, flow_type, manual_stage, status,
			customer_name, customer_code, logistics_type, tracking_code,
			shipment_id, marketplace_order_id, picklist_id, invoice_number, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.Channel, order.FlowType, order.ManualStage, order.Status,
		order.CustomerName, order.CustomerCode, order.LogisticsType, order.TrackingCode,
		order.ShipmentID, order.MarketplaceOrderID, order.PicklistID, order.InvoiceNumber, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}

	for _, item := range order.Items {
		item.OrderID = order.ID
		if err := r.UpsertItem(ctx, tx, item); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns an order with its lines and parcels
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE id = $1`

	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByNumber returns an order by its business number
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE order_number = $1`

	if err := r.db.GetContext(ctx, &order, query, number); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByShipmentID returns an order by the carrier shipment identifier
func (r *OrderRepository) GetByShipmentID(ctx context.Context, shipmentID string) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE shipment_id = $1`

	if err := r.db.GetContext(ctx, &order, query, shipmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByInvoiceNumber returns the newest order carrying the invoice number
func (r *OrderRepository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE invoice_number = $1 ORDER BY created_at DESC LIMIT 1`

	if err := r.db.GetContext(ctx, &order, query, invoiceNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByMarketplaceID returns an order by the marketplace's own order id
func (r *OrderRepository) GetByMarketplaceID(ctx context.Context, marketplaceID string) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE marketplace_order_id = $1 ORDER BY created_at DESC LIMIT 1`

	if err := r.db.GetContext(ctx, &order, query, marketplaceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// List returns orders matching the filter with a total count for pagination
func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Order, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Channel != nil {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argPos))
		args = append(args, *filter.Channel)
		argPos++
	}
	if filter.PicklistID != nil {
		conditions = append(conditions, fmt.Sprintf("picklist_id = $%d", argPos))
		args = append(args, *filter.PicklistID)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(order_number ILIKE $%d OR customer_name ILIKE $%d OR tracking_code ILIKE $%d)",
			argPos, argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM orders WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(
		"SELECT * FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	orders := []*domain.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ListByPicklist returns all orders on a picklist, lines included
func (r *OrderRepository) ListByPicklist(ctx context.Context, picklistID string) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	query := `SELECT * FROM orders WHERE picklist_id = $1 ORDER BY order_number`

	if err := r.db.SelectContext(ctx, &orders, query, picklistID); err != nil {
		return nil, fmt.Errorf("failed to list picklist orders: %w", err)
	}
	for _, o := range orders {
		if err := r.loadDetails(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another. The old status is
// part of the predicate so a concurrent move loses cleanly instead of
// overwriting.
func (r *OrderRepository) UpdateStatus(ctx context.Context, q sqlx.ExtContext, id int64, from, to domain.Status) error {
	query := `
		UPDATE orders SET status = $1, updated_at = NOW(),
			dispatched_at = CASE WHEN $1 = 'DISPATCHED' THEN NOW() ELSE dispatched_at END
		WHERE id = $2 AND status = $3`

	result, err := q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.InvalidStateTransition(string(from), string(to))
	}
	return nil
}

// UpdateNumber renames the order's business number
func (r *OrderRepository) UpdateNumber(ctx context.Context, q sqlx.ExtContext, id int64, number string) error {
	query := `UPDATE orders SET order_number = $1, updated_at = NOW() WHERE id = $2`

	result, err := q.ExecContext(ctx, query, number, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order")
	}
	return nil
}

// AssignPicklist stamps a batch of pending orders onto a picklist and moves
// them into preparation. Returns how many orders were actually claimed.
func (r *OrderRepository) AssignPicklist(ctx context.Context, tx *sqlx.Tx, picklistID string, orderIDs []int64) (int64, error) {
	query, args, err := sqlx.In(`
		UPDATE orders SET picklist_id = ?, status = 'IN_PREPARATION', updated_at = NOW()
		WHERE id IN (?) AND status = 'PENDING'`, picklistID, orderIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build picklist assignment: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, database.MapPQError(err)
	}
	return result.RowsAffected()
}

// SetAttachments records admin paperwork references on a manual-flow order
func (r *OrderRepository) SetAttachments(ctx context.Context, q sqlx.ExtContext, id int64, labelRef, invoiceRef, invoiceNumber *string) error {
	query := `
		UPDATE orders SET
			label_ref = COALESCE($1, label_ref),
			invoice_ref = COALESCE($2, invoice_ref),
			invoice_number = COALESCE($3, invoice_number),
			updated_at = NOW()
		WHERE id = $4`

	result, err := q.ExecContext(ctx, query, labelRef, invoiceRef, invoiceNumber, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order")
	}
	return nil
}

// SetCustomer records the counterparty on an order, leaving absent
// fields untouched
func (r *OrderRepository) SetCustomer(ctx context.Context, q sqlx.ExtContext, id int64, name, code *string) error {
	query := `
		UPDATE orders SET
			customer_name = COALESCE($1, customer_name),
			customer_code = COALESCE($2, customer_code),
			updated_at = NOW()
		WHERE id = $3`

	result, err := q.ExecContext(ctx, query, name, code, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order")
	}
	return nil
}

// SetManualStage flips a manual order between preparation and closeout
func (r *OrderRepository) SetManualStage(ctx context.Context, q sqlx.ExtContext, id int64, stage domain.ManualStage) error {
	query := `UPDATE orders SET manual_stage = $1, updated_at = NOW() WHERE id = $2`

	result, err := q.ExecContext(ctx, query, stage, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order")
	}
	return nil
}

// Delete removes an order and, via cascade, its lines and parcels
func (r *OrderRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order")
	}
	return nil
}

// CountOpenInChannels counts orders still in flight across the given
// channels. Zero means the channel group has settled.
func (r *OrderRepository) CountOpenInChannels(ctx context.Context, q sqlx.ExtContext, channels []domain.Channel) (int64, error) {
	statuses := domain.OpenStatuses()
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM orders WHERE channel IN (?) AND status IN (?)`,
		channels, statuses)
	if err != nil {
		return 0, fmt.Errorf("failed to build open count query: %w", err)
	}

	var count int64
	row := q.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open orders: %w", err)
	}
	return count, nil
}

// UpsertItem adds a line to an order, merging quantities when the SKU is
// already present.
func (r *OrderRepository) UpsertItem(ctx context.Context, q sqlx.ExtContext, item *domain.Item) error {
	query := `
		INSERT INTO order_items (order_id, sku, description, requested_qty, fulfilled_qty)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, sku) DO UPDATE SET
			requested_qty = order_items.requested_qty + EXCLUDED.requested_qty,
			description = COALESCE(EXCLUDED.description, order_items.description)
		RETURNING id, requested_qty, fulfilled_qty`

	row := q.QueryRowxContext(ctx, query,
		item.OrderID, item.SKU, item.Description, item.RequestedQty, item.FulfilledQty)
	if err := row.Scan(&item.ID, &item.RequestedQty, &item.FulfilledQty); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetItem returns a single line by order and SKU
func (r *OrderRepository) GetItem(ctx context.Context, orderID int64, sku string) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT * FROM order_items WHERE order_id = $1 AND sku = $2`

	if err := r.db.GetContext(ctx, &item, query, orderID, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order item")
		}
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	return &item, nil
}

// IncrementFulfilled bumps a line's picked quantity by delta, but only when
// the result stays within the requested quantity. The check and the write
// are one statement so concurrent scanners cannot oversell a line.
// Returns false when the increment would exceed the line (or no such line
// exists); the caller decides which error that is.
func (r *OrderRepository) IncrementFulfilled(ctx context.Context, q sqlx.ExtContext, orderID int64, sku string, delta int) (bool, error) {
	query := `
		UPDATE order_items SET fulfilled_qty = fulfilled_qty + $3
		WHERE order_id = $1 AND sku = $2 AND fulfilled_qty + $3 <= requested_qty`

	result, err := q.ExecContext(ctx, query, orderID, sku, delta)
	if err != nil {
		return false, database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ResetFulfilled zeroes a line's picked quantity
func (r *OrderRepository) ResetFulfilled(ctx context.Context, orderID int64, sku string) error {
	query := `UPDATE order_items SET fulfilled_qty = 0 WHERE order_id = $1 AND sku = $2`

	result, err := r.db.ExecContext(ctx, query, orderID, sku)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order item")
	}
	return nil
}

// RemoveItem deletes a line from an order
func (r *OrderRepository) RemoveItem(ctx context.Context, orderID int64, sku string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1 AND sku = $2`, orderID, sku)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("order item")
	}
	return nil
}

// ReplaceParcels swaps the order's parcel set for the given one
func (r *OrderRepository) ReplaceParcels(ctx context.Context, tx *sqlx.Tx, orderID int64, parcels []*domain.Parcel) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_parcels WHERE order_id = $1`, orderID); err != nil {
		return database.MapPQError(err)
	}

	query := `
		INSERT INTO order_parcels (order_id, seq, weight_kg, length_cm, width_cm, height_cm)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i, p := range parcels {
		p.OrderID = orderID
		p.Seq = i + 1
		row := tx.QueryRowxContext(ctx, query, orderID, p.Seq, p.WeightKg, p.LengthCm, p.WidthCm, p.HeightCm)
		if err := row.Scan(&p.ID); err != nil {
			return database.MapPQError(err)
		}
	}
	return nil
}

// Touch refreshes updated_at, used when a mutation happens on a child row
func (r *OrderRepository) Touch(ctx context.Context, q sqlx.ExtContext, id int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE orders SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

func (r *OrderRepository) loadDetails(ctx context.Context, order *domain.Order) error {
	items := []*domain.Item{}
	if err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY sku`, order.ID); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	order.Items = items

	parcels := []*domain.Parcel{}
	if err := r.db.SelectContext(ctx, &parcels,
		`SELECT * FROM order_parcels WHERE order_id = $1 ORDER BY seq`, order.ID); err != nil {
		return fmt.Errorf("failed to load order parcels: %w", err)
	}
	order.Parcels = parcels
	return nil
}
