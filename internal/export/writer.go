package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pinoerp/wms-backend/internal/movements/repository"
)

// LedgerWriter hands a batch of movements to the legacy accounting
// side. The real writer lives outside this system; the spool
// implementation drops files where it picks them up.
type LedgerWriter interface {
	WriteBatch(ctx context.Context, batchID string, movements []*repository.Movement) error
}

// SpoolWriter writes export batches as semicolon-separated files in the
// legacy exchange directory. The file appears atomically, the legacy
// side never sees a half-written batch.
type SpoolWriter struct {
	dir string
}

// NewSpoolWriter creates a spool writer rooted at dir
func NewSpoolWriter(dir string) (*SpoolWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &SpoolWriter{dir: dir}, nil
}

// WriteBatch writes one batch file. Row layout matches the legacy
// ledger import: order number, client code, sku, signed quantity, pool,
// movement timestamp.
func (w *SpoolWriter) WriteBatch(ctx context.Context, batchID string, movements []*repository.Movement) error {
	tmp, err := os.CreateTemp(w.dir, batchID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	cw.Comma = ';'
	for _, m := range movements {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		qty := m.Quantity
		if m.Direction == repository.DirectionOut {
			qty = -qty
		}
		row := []string{
			m.OrderNumber,
			m.ClientCode,
			m.SKU,
			strconv.Itoa(qty),
			string(m.Pool),
			m.MovedAt.Format("20060102150405"),
		}
		if err := cw.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write spool row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush spool file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close spool file: %w", err)
	}

	final := filepath.Join(w.dir, batchID+".csv")
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("failed to publish spool file: %w", err)
	}
	return nil
}
