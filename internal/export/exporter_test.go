package export_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pinoerp/wms-backend/internal/export"
	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func seedBacklog(t *testing.T, ctx context.Context, count int) {
	t.Helper()
	repo := repository.NewMovementRepository(suite.DB)
	movements := make([]*repository.Movement, 0, count)
	fixtures := testutil.NewFixtureFactory()
	for i := 0; i < count; i++ {
		fx := fixtures.Movement(0)
		movements = append(movements, &repository.Movement{
			OrderNumber: fx.OrderNumber,
			ClientCode:  fx.ClientCode,
			SKU:         fx.SKU,
			Quantity:    fx.Quantity,
			Pool:        repository.Pool(fx.Pool),
			Direction:   repository.Direction(fx.Direction),
		})
	}
	require.NoError(t, repo.InsertBatch(ctx, suite.DB, movements))
}

func TestExporter_DrainsBacklogInBatches(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	dir := t.TempDir()
	writer, err := export.NewSpoolWriter(dir)
	require.NoError(t, err)

	repo := repository.NewMovementRepository(suite.DB)
	exporter := export.NewExporter(suite.DB, repo, writer, nil, 2, suite.Logger)

	seedBacklog(t, ctx, 5)

	exported, err := exporter.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, exported)

	depth, err := repo.CountUnexported(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 1)
	for _, entry := range entries {
		assert.Contains(t, entry.Name(), ".csv")
	}
}

func TestExporter_SecondRunIsNoop(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	dir := t.TempDir()
	writer, err := export.NewSpoolWriter(dir)
	require.NoError(t, err)

	repo := repository.NewMovementRepository(suite.DB)
	exporter := export.NewExporter(suite.DB, repo, writer, nil, 100, suite.Logger)

	seedBacklog(t, ctx, 3)

	exported, err := exporter.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, exported)

	exported, err = exporter.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, exported)
}

func TestExporter_EmptyBacklog(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	writer, err := export.NewSpoolWriter(t.TempDir())
	require.NoError(t, err)

	repo := repository.NewMovementRepository(suite.DB)
	exporter := export.NewExporter(suite.DB, repo, writer, nil, 100, suite.Logger)

	exported, err := exporter.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, exported)
}
