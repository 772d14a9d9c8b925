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

// Modality is how the replacement shipment settles against the return
type Modality string

const (
	// ModalityImmediate cross-ships the replacement before the return
	// parcel has arrived.
	ModalityImmediate Modality = "IMMEDIATE"

	// ModalityDeferred ships the replacement only once the return has
	// been received.
	ModalityDeferred Modality = "DEFERRED"
)

// Intake states
const (
	IntakePending   = "PENDING"
	IntakeCompleted = "COMPLETED"
)

// Outbound states
const (
	OutboundPending    = "PENDING"
	OutboundInProgress = "IN_PROGRESS"
	OutboundCompleted  = "COMPLETED"
)

// Received conditions
const (
	ConditionOK        = "OK"
	ConditionDamaged   = "DAMAGED"
	ConditionWrongItem = "WRONG_ITEM"
)

// Exchange is one return-and-replace transaction against an original order
type Exchange struct {
	ID               string     `db:"id" json:"id"`
	OriginalOrderID  int64      `db:"original_order_id" json:"original_order_id"`
	Modality         Modality   `db:"modality" json:"modality"`
	IntakeStatus     string     `db:"intake_status" json:"intake_status"`
	OutboundStatus   string     `db:"outbound_status" json:"outbound_status"`
	SatelliteOrderID *int64     `db:"satellite_order_id" json:"satellite_order_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	ReceivedAt       *time.Time `db:"received_at" json:"received_at,omitempty"`

	Lines []*ExchangeLine `db:"-" json:"lines,omitempty"`
}

// ExchangeLine pairs a returned SKU with its replacement
type ExchangeLine struct {
	ID                int64   `db:"id" json:"id"`
	ExchangeID        string  `db:"exchange_id" json:"exchange_id"`
	ReturnedSKU       string  `db:"returned_sku" json:"returned_sku"`
	ReturnedQty       int     `db:"returned_qty" json:"returned_qty"`
	ReplacementSKU    string  `db:"replacement_sku" json:"replacement_sku"`
	ReplacementQty    int     `db:"replacement_qty" json:"replacement_qty"`
	ReceivedCondition *string `db:"received_condition" json:"received_condition,omitempty"`
}

// ExchangeRepository provides access to exchanges
type ExchangeRepository struct {
	db *database.DB
}

// NewExchangeRepository creates a new exchange repository
func NewExchangeRepository(db *database.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Create inserts an exchange and its lines inside the given transaction
func (r *ExchangeRepository) Create(ctx context.Context, tx *sqlx.Tx, exchange *Exchange) error {
	query := `
		INSERT INTO exchanges (id, original_order_id, modality, intake_status, outbound_status, satellite_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := tx.QueryRowxContext(ctx, query,
		exchange.ID, exchange.OriginalOrderID, exchange.Modality,
		exchange.IntakeStatus, exchange.OutboundStatus, exchange.SatelliteOrderID,
	).Scan(&exchange.CreatedAt)
	if err != nil {
		return database.MapPQError(err)
	}

	lineQuery := `
		INSERT INTO exchange_lines (exchange_id, returned_sku, returned_qty, replacement_sku, replacement_qty)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for _, line := range exchange.Lines {
		line.ExchangeID = exchange.ID
		row := tx.QueryRowxContext(ctx, lineQuery,
			exchange.ID, line.ReturnedSKU, line.ReturnedQty, line.ReplacementSKU, line.ReplacementQty)
		if err := row.Scan(&line.ID); err != nil {
			return database.MapPQError(err)
		}
	}
	return nil
}

// GetByID returns an exchange with its lines
func (r *ExchangeRepository) GetByID(ctx context.Context, id string) (*Exchange, error) {
	var exchange Exchange
	query := `SELECT * FROM exchanges WHERE id = $1`

	if err := r.db.GetContext(ctx, &exchange, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("exchange")
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}

	lines := []*ExchangeLine{}
	if err := r.db.SelectContext(ctx, &lines,
		`SELECT * FROM exchange_lines WHERE exchange_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to load exchange lines: %w", err)
	}
	exchange.Lines = lines
	return &exchange, nil
}

// List returns exchanges, newest first
func (r *ExchangeRepository) List(ctx context.Context, intakeStatus string, page, pageSize int) ([]*Exchange, int64, error) {
	where := "1=1"
	args := []interface{}{}
	if intakeStatus != "" {
		where = "intake_status = $1"
		args = append(args, intakeStatus)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exchanges WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count exchanges: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	query := fmt.Sprintf(
		"SELECT * FROM exchanges WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	exchanges := []*Exchange{}
	if err := r.db.SelectContext(ctx, &exchanges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list exchanges: %w", err)
	}
	return exchanges, total, nil
}

// CompleteIntake moves the exchange's intake to COMPLETED. The predicate
// on the old state makes a second receive attempt claim zero rows, which
// the service reports as ALREADY_PROCESSED.
func (r *ExchangeRepository) CompleteIntake(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := `
		UPDATE exchanges SET intake_status = $1, received_at = NOW()
		WHERE id = $2 AND intake_status = $3`

	result, err := tx.ExecContext(ctx, query, IntakeCompleted, id, IntakePending)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.AlreadyProcessed("exchange intake")
	}
	return nil
}

// SetOutbound records the satellite order and advances the outbound state
func (r *ExchangeRepository) SetOutbound(ctx context.Context, q sqlx.ExtContext, id, status string, satelliteOrderID *int64) error {
	query := `UPDATE exchanges SET outbound_status = $1, satellite_order_id = COALESCE($2, satellite_order_id) WHERE id = $3`

	result, err := q.ExecContext(ctx, query, status, satelliteOrderID, id)
	if err != nil {
		return database.MapPQError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("exchange")
	}
	return nil
}

// CompleteOutboundFor closes the outbound leg once its satellite order
// leaves the building. Orders that are not exchange satellites, or whose
// outbound is not in progress, are a no-op.
func (r *ExchangeRepository) CompleteOutboundFor(ctx context.Context, q sqlx.ExtContext, satelliteOrderID int64) error {
	query := `UPDATE exchanges SET outbound_status = $1 WHERE satellite_order_id = $2 AND outbound_status = $3`

	if _, err := q.ExecContext(ctx, query, OutboundCompleted, satelliteOrderID, OutboundInProgress); err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// SetCondition records the assessed condition on every line of the
// exchange.
func (r *ExchangeRepository) SetCondition(ctx context.Context, tx *sqlx.Tx, id, condition string) error {
	query := `UPDATE exchange_lines SET received_condition = $1 WHERE exchange_id = $2`

	if _, err := tx.ExecContext(ctx, query, condition, id); err != nil {
		return database.MapPQError(err)
	}
	return nil
}
