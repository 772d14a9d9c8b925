package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*repository.MovementRepository, *testutil.UnitTestSuite) {
	t.Helper()
	unit := testutil.NewUnitTestSuite(t)
	t.Cleanup(unit.Cleanup)
	db := database.Wrap(unit.MockDB.DB, logger.New("movements-test", "test"))
	return repository.NewMovementRepository(db), unit
}

func TestCountUnexported(t *testing.T) {
	repo, unit := newMockRepo(t)

	unit.MockDB.ExpectQuery(`SELECT COUNT(*) FROM movements WHERE exported = FALSE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountUnexported(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestMarkExported_EmptyIDsShortCircuits(t *testing.T) {
	repo, unit := newMockRepo(t)

	flagged, err := repo.MarkExported(context.Background(), unit.MockDB.DB, nil)
	require.NoError(t, err)
	assert.Zero(t, flagged)
}

func TestMarkExported_OnlyFlipsUnexportedRows(t *testing.T) {
	repo, unit := newMockRepo(t)

	unit.MockDB.Mock.ExpectExec(`UPDATE movements SET exported = TRUE`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	flagged, err := repo.MarkExported(context.Background(), unit.MockDB.DB, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), flagged)
}

func TestReopen_OnlyTouchesExportedRows(t *testing.T) {
	repo, unit := newMockRepo(t)

	unit.MockDB.Mock.ExpectExec(`UPDATE movements SET exported = FALSE`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reopened, err := repo.Reopen(context.Background(), unit.MockDB.DB, []int64{5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reopened)

	reopened, err = repo.Reopen(context.Background(), unit.MockDB.DB, nil)
	require.NoError(t, err)
	assert.Zero(t, reopened)
}
