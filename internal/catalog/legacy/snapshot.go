// Package legacy reads the snapshot tables the accounting system exports
// onto the shared ledger directory. The desktop system keeps its files
// open with range locks, so every read copies the export to a scratch
// location first and parses the copy.
package legacy

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// Snapshot file names on the shared directory
const (
	ProductsFile  = "articles.csv"
	CustomersFile = "customers.csv"
	SuppliersFile = "suppliers.csv"
)

// ProductRecord is one article row from the legacy export
type ProductRecord struct {
	SKU          string
	EAN          string
	Description  string
	FloorQty     int
	WarehouseQty int
}

// PartyRecord is one customer or supplier row from the legacy export
type PartyRecord struct {
	Code string
	Name string
}

// SnapshotReader copies and parses legacy export files
type SnapshotReader struct {
	cfg    config.LegacyConfig
	logger *logger.Logger
}

// NewSnapshotReader creates a new snapshot reader
func NewSnapshotReader(cfg config.LegacyConfig, log *logger.Logger) *SnapshotReader {
	return &SnapshotReader{
		cfg:    cfg,
		logger: log,
	}
}

// ReadProducts parses the article snapshot
func (s *SnapshotReader) ReadProducts(ctx context.Context) ([]ProductRecord, error) {
	rows, err := s.readRows(ctx, ProductsFile, 5)
	if err != nil {
		return nil, err
	}

	records := make([]ProductRecord, 0, len(rows))
	for i, row := range rows {
		floorQty, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			s.logger.Warn().Int("line", i+1).Str("value", row[3]).Msg("skipping article with bad floor quantity")
			continue
		}
		warehouseQty, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			s.logger.Warn().Int("line", i+1).Str("value", row[4]).Msg("skipping article with bad warehouse quantity")
			continue
		}

		sku := strings.TrimSpace(row[0])
		if sku == "" {
			continue
		}
		records = append(records, ProductRecord{
			SKU:          sku,
			EAN:          strings.TrimSpace(row[1]),
			Description:  strings.TrimSpace(row[2]),
			FloorQty:     floorQty,
			WarehouseQty: warehouseQty,
		})
	}
	return records, nil
}

// ReadCustomers parses the customer snapshot
func (s *SnapshotReader) ReadCustomers(ctx context.Context) ([]PartyRecord, error) {
	return s.readParties(ctx, CustomersFile)
}

// ReadSuppliers parses the supplier snapshot
func (s *SnapshotReader) ReadSuppliers(ctx context.Context) ([]PartyRecord, error) {
	return s.readParties(ctx, SuppliersFile)
}

func (s *SnapshotReader) readParties(ctx context.Context, name string) ([]PartyRecord, error) {
	rows, err := s.readRows(ctx, name, 2)
	if err != nil {
		return nil, err
	}

	records := make([]PartyRecord, 0, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		records = append(records, PartyRecord{
			Code: code,
			Name: strings.TrimSpace(row[1]),
		})
	}
	return records, nil
}

// readRows copies the named export to scratch space and parses it.
// The copy is retried because the desktop system rewrites exports in
// place and a read can catch the file mid-write.
func (s *SnapshotReader) readRows(ctx context.Context, name string, minFields int) ([][]string, error) {
	src := filepath.Join(s.cfg.DataDir, name)

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("legacy snapshot " + name)
		}
		return nil, fmt.Errorf("failed to stat snapshot %s: %w", name, err)
	}
	if s.cfg.SnapshotMaxAge > 0 && time.Since(info.ModTime()) > s.cfg.SnapshotMaxAge {
		return nil, errors.Conflict(fmt.Sprintf(
			"snapshot %s is stale (last written %s)", name, info.ModTime().Format(time.RFC3339)))
	}

	attempts := s.cfg.CopyAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var copied string
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copied, lastErr = s.copyToScratch(src, name)
		if lastErr == nil {
			break
		}

		s.logger.Warn().
			Err(lastErr).
			Str("file", name).
			Int("attempt", attempt).
			Msg("snapshot copy failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.CopyRetryDelay):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to copy snapshot %s after %d attempts: %w", name, attempts, lastErr)
	}
	defer os.Remove(copied)

	return parseCSV(copied, minFields)
}

func (s *SnapshotReader) copyToScratch(src, name string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dir := s.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	out, err := os.CreateTemp(dir, "wms-snapshot-"+name+"-*")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func parseCSV(path string, minFields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot: %w", err)
		}
		if first {
			// header row
			first = false
			continue
		}
		if len(row) < minFields {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
