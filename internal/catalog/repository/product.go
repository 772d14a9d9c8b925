package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// Product is one catalog entry, mirroring the legacy system's article
// table. Stock counts are the snapshot values, not live counters.
type Product struct {
	SKU          string    `db:"sku" json:"sku"`
	EAN          *string   `db:"ean" json:"ean,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	FloorQty     int       `db:"floor_qty" json:"floor_qty"`
	WarehouseQty int       `db:"warehouse_qty" json:"warehouse_qty"`
	Hidden       bool      `db:"hidden" json:"hidden"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertResult classifies what an import upsert did to a row
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertInserted
	UpsertUpdated
)

// ProductRepository provides access to the product catalog
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert writes a snapshot row into the catalog and reports whether the
// row was inserted, changed, or already identical.
func (r *ProductRepository) Upsert(ctx context.Context, q sqlx.ExtContext, p *Product) (UpsertResult, error) {
	query := `
		INSERT INTO products (sku, ean, description, floor_qty, warehouse_qty, hidden)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku) DO UPDATE SET
			ean = EXCLUDED.ean,
			description = EXCLUDED.description,
			floor_qty = EXCLUDED.floor_qty,
			warehouse_qty = EXCLUDED.warehouse_qty,
			hidden = EXCLUDED.hidden,
			updated_at = NOW()
		WHERE (products.ean, products.description, products.floor_qty, products.warehouse_qty, products.hidden)
			IS DISTINCT FROM
			(EXCLUDED.ean, EXCLUDED.description, EXCLUDED.floor_qty, EXCLUDED.warehouse_qty, EXCLUDED.hidden)
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	row := q.QueryRowxContext(ctx, query, p.SKU, p.EAN, p.Description, p.FloorQty, p.WarehouseQty, p.Hidden)
	if err := row.Scan(&inserted); err != nil {
		if err == sql.ErrNoRows {
			return UpsertUnchanged, nil
		}
		return UpsertUnchanged, database.MapPQError(err)
	}
	if inserted {
		return UpsertInserted, nil
	}
	return UpsertUpdated, nil
}

// GetBySKU returns a product by its SKU
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE sku = $1`

	if err := r.db.GetContext(ctx, &p, query, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// GetByEAN returns a product by its barcode
func (r *ProductRepository) GetByEAN(ctx context.Context, ean string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE ean = $1 LIMIT 1`

	if err := r.db.GetContext(ctx, &p, query, ean); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product by ean: %w", err)
	}
	return &p, nil
}

// List returns catalog entries, hidden ones only on request
func (r *ProductRepository) List(ctx context.Context, search string, includeHidden bool, page, pageSize int) ([]*Product, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if !includeHidden {
		conditions = append(conditions, "hidden = FALSE")
	}
	if search != "" {
		conditions = append(conditions, fmt.Sprintf("(sku ILIKE $%d OR ean ILIKE $%d OR description ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+search+"%")
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}

	query := fmt.Sprintf("SELECT * FROM products WHERE %s ORDER BY sku LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	products := []*Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// SetHidden flips a product's visibility
func (r *ProductRepository) SetHidden(ctx context.Context, sku string, hidden bool) error {
	query := `UPDATE products SET hidden = $1, updated_at = NOW() WHERE sku = $2`

	result, err := r.db.ExecContext(ctx, query, hidden, sku)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("product")
	}
	return nil
}

// HideMissing hides every product not in the given snapshot SKU set.
// The rows stay around so old orders keep resolving, they just stop
// showing up in lookups.
func (r *ProductRepository) HideMissing(ctx context.Context, tx *sqlx.Tx, snapshotSKUs []string) (int64, error) {
	if len(snapshotSKUs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE products SET hidden = TRUE, updated_at = NOW()
		WHERE hidden = FALSE AND sku NOT IN (?)`, snapshotSKUs)
	if err != nil {
		return 0, fmt.Errorf("failed to build hide missing query: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, database.MapPQError(err)
	}
	return result.RowsAffected()
}
