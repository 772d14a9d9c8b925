package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// Rule sets the sales-floor minimum and refill quantity for one sku
type Rule struct {
	SKU         string    `db:"sku" json:"sku"`
	MinFloorQty int       `db:"min_floor_qty" json:"min_floor_qty"`
	RefillQty   int       `db:"refill_qty" json:"refill_qty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Suggestion is one sku the sales floor should pull from the warehouse
type Suggestion struct {
	SKU          string  `db:"sku" json:"sku"`
	Description  *string `db:"description" json:"description,omitempty"`
	FloorQty     int     `db:"floor_qty" json:"floor_qty"`
	WarehouseQty int     `db:"warehouse_qty" json:"warehouse_qty"`
	MinFloorQty  int     `db:"min_floor_qty" json:"min_floor_qty"`
	RefillQty    int     `db:"refill_qty" json:"refill_qty"`
	Hidden       bool    `db:"hidden" json:"hidden"`
}

// RuleRepository provides access to replenishment rules
type RuleRepository struct {
	db *database.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *database.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Upsert creates or replaces the rule for a sku
func (r *RuleRepository) Upsert(ctx context.Context, rule *Rule) error {
	query := `
		INSERT INTO replenishment_rules (sku, min_floor_qty, refill_qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (sku) DO UPDATE SET
			min_floor_qty = EXCLUDED.min_floor_qty,
			refill_qty = EXCLUDED.refill_qty,
			updated_at = NOW()
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query, rule.SKU, rule.MinFloorQty, rule.RefillQty).
		Scan(&rule.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetBySKU returns the rule for a sku
func (r *RuleRepository) GetBySKU(ctx context.Context, sku string) (*Rule, error) {
	var rule Rule
	query := `SELECT * FROM replenishment_rules WHERE sku = $1`

	if err := r.db.GetContext(ctx, &rule, query, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("replenishment rule")
		}
		return nil, fmt.Errorf("failed to get replenishment rule: %w", err)
	}
	return &rule, nil
}

// List returns all rules ordered by sku
func (r *RuleRepository) List(ctx context.Context) ([]*Rule, error) {
	rules := []*Rule{}
	query := `SELECT * FROM replenishment_rules ORDER BY sku`

	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list replenishment rules: %w", err)
	}
	return rules, nil
}

// Delete removes the rule for a sku
func (r *RuleRepository) Delete(ctx context.Context, sku string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM replenishment_rules WHERE sku = $1`, sku)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("replenishment rule")
	}
	return nil
}

// Suggestions joins the rules against the product master: a sku
// qualifies when its floor stock sits below the rule minimum and the
// warehouse still has units to pull.
func (r *RuleRepository) Suggestions(ctx context.Context) ([]*Suggestion, error) {
	suggestions := []*Suggestion{}
	query := `
		SELECT p.sku, p.description, p.floor_qty, p.warehouse_qty, p.hidden,
		       rr.min_floor_qty, rr.refill_qty
		FROM replenishment_rules rr
		JOIN products p ON p.sku = rr.sku
		WHERE p.floor_qty < rr.min_floor_qty
		  AND p.warehouse_qty > 0
		ORDER BY p.sku`

	if err := r.db.SelectContext(ctx, &suggestions, query); err != nil {
		return nil, fmt.Errorf("failed to compute replenishment suggestions: %w", err)
	}
	return suggestions, nil
}
