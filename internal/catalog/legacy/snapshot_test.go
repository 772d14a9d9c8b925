package legacy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pinoerp/wms-backend/internal/catalog/legacy"
	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T, dataDir string, maxAge time.Duration) *legacy.SnapshotReader {
	t.Helper()
	return legacy.NewSnapshotReader(config.LegacyConfig{
		DataDir:        dataDir,
		TempDir:        t.TempDir(),
		CopyAttempts:   2,
		CopyRetryDelay: time.Millisecond,
		SnapshotMaxAge: maxAge,
	}, logger.New("snapshot-test", "test"))
}

func writeSnapshot(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadProducts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeSnapshot(t, dir, legacy.ProductsFile,
		"sku;ean;description;floor;warehouse\n"+
			"SKU-A;7791234567890;Linen shirt;5;40\n"+
			" SKU-B ;;Socks; 0 ;12\n"+
			"SKU-C;779;Broken;abc;3\n"+
			";779;No sku;1;1\n"+
			"SKU-D;short\n")

	records, err := newReader(t, dir, 0).ReadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "SKU-A", records[0].SKU)
	assert.Equal(t, "7791234567890", records[0].EAN)
	assert.Equal(t, "Linen shirt", records[0].Description)
	assert.Equal(t, 5, records[0].FloorQty)
	assert.Equal(t, 40, records[0].WarehouseQty)

	assert.Equal(t, "SKU-B", records[1].SKU)
	assert.Equal(t, "", records[1].EAN)
	assert.Equal(t, 0, records[1].FloorQty)
	assert.Equal(t, 12, records[1].WarehouseQty)
}

func TestReadProducts_MissingFile(t *testing.T) {
	_, err := newReader(t, t.TempDir(), 0).ReadProducts(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReadProducts_StaleSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, legacy.ProductsFile, "sku;ean;description;floor;warehouse\nSKU-A;;x;1;1\n")

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, legacy.ProductsFile), old, old))

	_, err := newReader(t, dir, time.Hour).ReadProducts(context.Background())
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestReadCustomers(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, legacy.CustomersFile,
		"code;name\n"+
			"C0001;Marta Ruiz\n"+
			";No code\n"+
			"C0002; Juana Molina \n")

	records, err := newReader(t, dir, 0).ReadCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, legacy.PartyRecord{Code: "C0001", Name: "Marta Ruiz"}, records[0])
	assert.Equal(t, legacy.PartyRecord{Code: "C0002", Name: "Juana Molina"}, records[1])
}

func TestReadProducts_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, legacy.ProductsFile, "sku;ean;description;floor;warehouse\nSKU-A;;x;1;1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReader(t, dir, 0).ReadProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
