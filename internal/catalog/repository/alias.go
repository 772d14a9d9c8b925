package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// BarcodeAlias maps a scanned code the catalog does not know to a SKU.
// Aliases are learned at the packing bench and shared by all stations.
type BarcodeAlias struct {
	Code      string    `db:"code" json:"code"`
	SKU       string    `db:"sku" json:"sku"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AliasRepository provides access to learned barcode aliases
type AliasRepository struct {
	db *database.DB
}

// NewAliasRepository creates a new alias repository
func NewAliasRepository(db *database.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// Learn records a code to SKU mapping. Re-learning the same mapping is a
// no-op; re-learning a code against a different SKU overwrites it, the
// newest scan wins.
func (r *AliasRepository) Learn(ctx context.Context, code, sku string) error {
	query := `
		INSERT INTO barcode_aliases (code, sku)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET sku = EXCLUDED.sku`

	if _, err := r.db.ExecContext(ctx, query, code, sku); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// Get resolves an alias code to its SKU
func (r *AliasRepository) Get(ctx context.Context, code string) (*BarcodeAlias, error) {
	var alias BarcodeAlias
	query := `SELECT * FROM barcode_aliases WHERE code = $1`

	if err := r.db.GetContext(ctx, &alias, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("barcode alias")
		}
		return nil, fmt.Errorf("failed to get barcode alias: %w", err)
	}
	return &alias, nil
}

// ListBySKU returns every learned code for a SKU
func (r *AliasRepository) ListBySKU(ctx context.Context, sku string) ([]*BarcodeAlias, error) {
	aliases := []*BarcodeAlias{}
	query := `SELECT * FROM barcode_aliases WHERE sku = $1 ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &aliases, query, sku); err != nil {
		return nil, fmt.Errorf("failed to list barcode aliases: %w", err)
	}
	return aliases, nil
}

// Delete removes a learned alias
func (r *AliasRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM barcode_aliases WHERE code = $1`, code)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("barcode alias")
	}
	return nil
}
