package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/pkg/database"
)

// Pool is a stock provenance pool. Every movement debits or credits
// exactly one of the two physical counts kept for a SKU.
type Pool string

const (
	PoolSalesFloor Pool = "SALES_FLOOR"
	PoolWarehouse  Pool = "WAREHOUSE"
)

// Other returns the opposite pool
func (p Pool) Other() Pool {
	if p == PoolSalesFloor {
		return PoolWarehouse
	}
	return PoolSalesFloor
}

// Direction is the sign of a movement from the warehouse's point of view
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Movement is an append-only ledger entry for one inventory change.
// Movements outlive the order that produced them; order_id goes null on
// order deletion while order_number keeps the provenance readable.
type Movement struct {
	ID          int64      `db:"id" json:"id"`
	OrderID     *int64     `db:"order_id" json:"order_id,omitempty"`
	OrderNumber string     `db:"order_number" json:"order_number"`
	ClientCode  string     `db:"client_code" json:"client_code"`
	SKU         string     `db:"sku" json:"sku"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Pool        Pool       `db:"pool" json:"pool"`
	Direction   Direction  `db:"direction" json:"direction"`
	MovedAt     time.Time  `db:"moved_at" json:"moved_at"`
	Exported    bool       `db:"exported" json:"exported"`
	ExportedAt  *time.Time `db:"exported_at" json:"exported_at,omitempty"`
}

// MovementRepository provides access to the movement ledger
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// ListFilter narrows List results
type ListFilter struct {
	Exported    *bool
	SKU         string
	OrderNumber string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// InsertBatch appends the given movements to the ledger
func (r *MovementRepository) InsertBatch(ctx context.Context, q sqlx.ExtContext, movements []*Movement) error {
	query := `
		INSERT INTO movements (order_id, order_number, client_code, sku, quantity, pool, direction)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, moved_at`

	for _, m := range movements {
		row := q.QueryRowxContext(ctx, query,
			m.OrderID, m.OrderNumber, m.ClientCode, m.SKU, m.Quantity, m.Pool, m.Direction)
		if err := row.Scan(&m.ID, &m.MovedAt); err != nil {
			return database.MapPQError(err)
		}
	}
	return nil
}

// ListByOrder returns all movements an order produced
func (r *MovementRepository) ListByOrder(ctx context.Context, orderID int64) ([]*Movement, error) {
	movements := []*Movement{}
	query := `SELECT * FROM movements WHERE order_id = $1 ORDER BY id`

	if err := r.db.SelectContext(ctx, &movements, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list order movements: %w", err)
	}
	return movements, nil
}

// List returns ledger entries matching the filter with a total count
func (r *MovementRepository) List(ctx context.Context, filter ListFilter) ([]*Movement, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter.Exported != nil {
		conditions = append(conditions, fmt.Sprintf("exported = $%d", argPos))
		args = append(args, *filter.Exported)
		argPos++
	}
	if filter.SKU != "" {
		conditions = append(conditions, fmt.Sprintf("sku = $%d", argPos))
		args = append(args, filter.SKU)
		argPos++
	}
	if filter.OrderNumber != "" {
		conditions = append(conditions, fmt.Sprintf("order_number = $%d", argPos))
		args = append(args, filter.OrderNumber)
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("moved_at >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("moved_at < $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM movements WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(
		"SELECT * FROM movements WHERE %s ORDER BY moved_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	movements := []*Movement{}
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, total, nil
}

// ClaimUnexported locks a batch of unexported movements for the caller's
// transaction. Skipping locked rows lets concurrent workers drain the
// queue without stepping on each other.
func (r *MovementRepository) ClaimUnexported(ctx context.Context, tx *sqlx.Tx, limit int) ([]*Movement, error) {
	movements := []*Movement{}
	query := `
		SELECT * FROM movements WHERE exported = FALSE
		ORDER BY moved_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	if err := tx.SelectContext(ctx, &movements, query, limit); err != nil {
		return nil, fmt.Errorf("failed to claim unexported movements: %w", err)
	}
	return movements, nil
}

// CountUnexported returns the unexported queue depth
func (r *MovementRepository) CountUnexported(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM movements WHERE exported = FALSE`); err != nil {
		return 0, fmt.Errorf("failed to count unexported movements: %w", err)
	}
	return count, nil
}

// MarkExported flags the given movements as exported. Already-exported
// rows are untouched, so re-marking is a no-op rather than an error.
// Returns how many rows actually flipped.
func (r *MovementRepository) MarkExported(ctx context.Context, q sqlx.ExtContext, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE movements SET exported = TRUE, exported_at = NOW()
		WHERE id IN (?) AND exported = FALSE`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build mark exported query: %w", err)
	}

	result, err := q.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, database.MapPQError(err)
	}
	return result.RowsAffected()
}

// Reopen returns exported movements to the unexported set. This is the
// only sanctioned path that clears the exported flag.
func (r *MovementRepository) Reopen(ctx context.Context, q sqlx.ExtContext, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE movements SET exported = FALSE, exported_at = NULL
		WHERE id IN (?) AND exported = TRUE`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build reopen query: %w", err)
	}

	result, err := q.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, database.MapPQError(err)
	}
	return result.RowsAffected()
}
