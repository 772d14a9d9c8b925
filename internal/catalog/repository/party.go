package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// Party is a customer or supplier known to the legacy system. Codes are
// the legacy account codes stamped onto exported movements.
type Party struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// PartyRepository provides access to customers and suppliers
type PartyRepository struct {
	db *database.DB
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *database.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// UpsertCustomer writes a customer snapshot row
func (r *PartyRepository) UpsertCustomer(ctx context.Context, q sqlx.ExtContext, p *Party) error {
	return r.upsert(ctx, q, "customers", p)
}

// UpsertSupplier writes a supplier snapshot row
func (r *PartyRepository) UpsertSupplier(ctx context.Context, q sqlx.ExtContext, p *Party) error {
	return r.upsert(ctx, q, "suppliers", p)
}

func (r *PartyRepository) upsert(ctx context.Context, q sqlx.ExtContext, table string, p *Party) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, table)

	if err := q.QueryRowxContext(ctx, query, p.Code, p.Name).Scan(&p.ID); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetCustomerByCode returns a customer by its legacy account code
func (r *PartyRepository) GetCustomerByCode(ctx context.Context, code string) (*Party, error) {
	return r.getByCode(ctx, "customers", "customer", code)
}

// GetSupplierByCode returns a supplier by its legacy account code
func (r *PartyRepository) GetSupplierByCode(ctx context.Context, code string) (*Party, error) {
	return r.getByCode(ctx, "suppliers", "supplier", code)
}

func (r *PartyRepository) getByCode(ctx context.Context, table, resource, code string) (*Party, error) {
	var p Party
	query := fmt.Sprintf(`SELECT * FROM %s WHERE code = $1`, table)

	if err := r.db.GetContext(ctx, &p, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(resource)
		}
		return nil, fmt.Errorf("failed to get %s: %w", resource, err)
	}
	return &p, nil
}

// FindCustomerByName returns the customer whose name matches best. An
// exact match wins over a substring match.
func (r *PartyRepository) FindCustomerByName(ctx context.Context, name string) (*Party, error) {
	return r.findByName(ctx, "customers", "customer", name)
}

// FindSupplierByName returns the supplier whose name matches best
func (r *PartyRepository) FindSupplierByName(ctx context.Context, name string) (*Party, error) {
	return r.findByName(ctx, "suppliers", "supplier", name)
}

func (r *PartyRepository) findByName(ctx context.Context, table, resource, name string) (*Party, error) {
	var p Party
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE UPPER(name) = UPPER($1) OR name ILIKE $2
		ORDER BY (UPPER(name) = UPPER($1)) DESC, name
		LIMIT 1`, table)

	if err := r.db.GetContext(ctx, &p, query, name, "%"+name+"%"); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(resource)
		}
		return nil, fmt.Errorf("failed to resolve %s by name: %w", resource, err)
	}
	return &p, nil
}

// SearchCustomers returns customers matching a name or code fragment
func (r *PartyRepository) SearchCustomers(ctx context.Context, search string, limit int) ([]*Party, error) {
	return r.search(ctx, "customers", search, limit)
}

// SearchSuppliers returns suppliers matching a name or code fragment
func (r *PartyRepository) SearchSuppliers(ctx context.Context, search string, limit int) ([]*Party, error) {
	return r.search(ctx, "suppliers", search, limit)
}

func (r *PartyRepository) search(ctx context.Context, table, search string, limit int) ([]*Party, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	parties := []*Party{}
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE code ILIKE $1 OR name ILIKE $1
		ORDER BY name LIMIT $2`, table)

	if err := r.db.SelectContext(ctx, &parties, query, "%"+search+"%", limit); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", table, err)
	}
	return parties, nil
}
