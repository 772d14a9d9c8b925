// Package testutil provides testing utilities for the warehouse backend.
// It includes testcontainers for PostgreSQL, mock factories, and common
// test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "wms_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
// The container is configured with sensible defaults for integration tests.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "wms_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateWarehouseSchema creates the core warehouse tables used by the
// repositories. This mirrors the initial migration so integration tests can
// run against a fresh container without the migrate binary.
func (c *PostgresContainer) CreateWarehouseSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS picklists (
			id UUID PRIMARY KEY,
			created_by VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			order_number VARCHAR(64) NOT NULL UNIQUE,
			channel VARCHAR(32) NOT NULL,
			flow_type VARCHAR(32),
			manual_stage VARCHAR(32),
			status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
			customer_name VARCHAR(255),
			customer_code VARCHAR(32),
			logistics_type VARCHAR(64),
			tracking_code VARCHAR(128),
			shipment_id VARCHAR(64) UNIQUE,
			marketplace_order_id VARCHAR(64),
			picklist_id UUID REFERENCES picklists(id),
			invoice_number VARCHAR(64),
			label_ref VARCHAR(255),
			invoice_ref VARCHAR(255),
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			dispatched_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			sku VARCHAR(64) NOT NULL,
			description VARCHAR(255),
			requested_qty INT NOT NULL CHECK (requested_qty > 0),
			fulfilled_qty INT NOT NULL DEFAULT 0,
			UNIQUE (order_id, sku),
			CONSTRAINT order_items_fulfilled_within_requested
				CHECK (fulfilled_qty >= 0 AND fulfilled_qty <= requested_qty)
		);

		CREATE TABLE IF NOT EXISTS order_parcels (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			weight_kg NUMERIC(8,3) NOT NULL DEFAULT 0,
			length_cm INT,
			width_cm INT,
			height_cm INT,
			UNIQUE (order_id, seq)
		);

		CREATE TABLE IF NOT EXISTS movements (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT REFERENCES orders(id) ON DELETE SET NULL,
			order_number VARCHAR(64) NOT NULL,
			client_code VARCHAR(32) NOT NULL,
			sku VARCHAR(64) NOT NULL,
			quantity INT NOT NULL CHECK (quantity > 0),
			pool VARCHAR(16) NOT NULL CHECK (pool IN ('SALES_FLOOR', 'WAREHOUSE')),
			direction VARCHAR(8) NOT NULL DEFAULT 'OUT' CHECK (direction IN ('IN', 'OUT')),
			moved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			exported BOOLEAN NOT NULL DEFAULT FALSE,
			exported_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS exchanges (
			id UUID PRIMARY KEY,
			original_order_id BIGINT NOT NULL REFERENCES orders(id),
			modality VARCHAR(16) NOT NULL CHECK (modality IN ('IMMEDIATE', 'DEFERRED')),
			intake_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			outbound_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			satellite_order_id BIGINT REFERENCES orders(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			received_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS exchange_lines (
			id BIGSERIAL PRIMARY KEY,
			exchange_id UUID NOT NULL REFERENCES exchanges(id) ON DELETE CASCADE,
			returned_sku VARCHAR(64) NOT NULL,
			returned_qty INT NOT NULL CHECK (returned_qty > 0),
			replacement_sku VARCHAR(64) NOT NULL,
			replacement_qty INT NOT NULL CHECK (replacement_qty > 0),
			received_condition VARCHAR(16)
		);

		CREATE TABLE IF NOT EXISTS products (
			sku VARCHAR(64) PRIMARY KEY,
			ean VARCHAR(64),
			description VARCHAR(255),
			floor_qty INT NOT NULL DEFAULT 0,
			warehouse_qty INT NOT NULL DEFAULT 0,
			hidden BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS barcode_aliases (
			code VARCHAR(64) PRIMARY KEY,
			sku VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(32) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS suppliers (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(32) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS replenishment_rules (
			sku VARCHAR(64) PRIMARY KEY,
			min_floor_qty INT NOT NULL CHECK (min_floor_qty >= 0),
			refill_qty INT NOT NULL CHECK (refill_qty > 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}

	return nil
}
