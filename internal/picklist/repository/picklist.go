package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// Picklist is one pick batch, a set of orders a runner collects in a
// single pass through the floor.
type Picklist struct {
	ID        string    `db:"id" json:"id"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Progress summarizes how far a pick batch has come
type Progress struct {
	Orders         int `db:"orders" json:"orders"`
	OrdersComplete int `db:"orders_complete" json:"orders_complete"`
	Lines          int `db:"lines" json:"lines"`
	LinesComplete  int `db:"lines_complete" json:"lines_complete"`
	UnitsRequested int `db:"units_requested" json:"units_requested"`
	UnitsFulfilled int `db:"units_fulfilled" json:"units_fulfilled"`
}

// PicklistRepository provides access to pick batches
type PicklistRepository struct {
	db *database.DB
}

// NewPicklistRepository creates a new picklist repository
func NewPicklistRepository(db *database.DB) *PicklistRepository {
	return &PicklistRepository{db: db}
}

// Create inserts a pick batch inside the given transaction
func (r *PicklistRepository) Create(ctx context.Context, tx *sqlx.Tx, p *Picklist) error {
	query := `
		INSERT INTO picklists (id, created_by)
		VALUES ($1, $2)
		RETURNING created_at`

	if err := tx.QueryRowxContext(ctx, query, p.ID, p.CreatedBy).Scan(&p.CreatedAt); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a pick batch
func (r *PicklistRepository) GetByID(ctx context.Context, id string) (*Picklist, error) {
	var p Picklist
	query := `SELECT * FROM picklists WHERE id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("picklist")
		}
		return nil, fmt.Errorf("failed to get picklist: %w", err)
	}
	return &p, nil
}

// List returns pick batches, newest first
func (r *PicklistRepository) List(ctx context.Context, page, pageSize int) ([]*Picklist, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM picklists`); err != nil {
		return nil, 0, fmt.Errorf("failed to count picklists: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	picklists := []*Picklist{}
	query := `SELECT * FROM picklists ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &picklists, query, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("failed to list picklists: %w", err)
	}
	return picklists, total, nil
}

// GetProgress aggregates pick progress across the batch's orders
func (r *PicklistRepository) GetProgress(ctx context.Context, id string) (*Progress, error) {
	var p Progress
	query := `
		SELECT
			COUNT(DISTINCT o.id) AS orders,
			COUNT(DISTINCT o.id) FILTER (WHERE o.status NOT IN ('PENDING', 'IN_PREPARATION')) AS orders_complete,
			COUNT(i.id) AS lines,
			COUNT(i.id) FILTER (WHERE i.fulfilled_qty >= i.requested_qty) AS lines_complete,
			COALESCE(SUM(i.requested_qty), 0) AS units_requested,
			COALESCE(SUM(i.fulfilled_qty), 0) AS units_fulfilled
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.id
		WHERE o.picklist_id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("failed to get picklist progress: %w", err)
	}
	if p.Orders == 0 {
		return nil, errors.NotFound("picklist")
	}
	return &p, nil
}
