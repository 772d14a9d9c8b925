package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/movements/events"
	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

const batchIDLayout = "EXP-20060102-150405.000"

// Exporter drains the unexported movement backlog in batches. Claiming,
// writing and flagging happen in one transaction per batch: a crash
// between the write and the commit leaves the batch unflagged and it is
// written again on the next run, the legacy side deduplicates on order
// number and sku.
type Exporter struct {
	db           *database.DB
	movementRepo *repository.MovementRepository
	writer       LedgerWriter
	publisher    *events.MovementEventPublisher
	batchSize    int
	logger       *logger.Logger
}

// NewExporter creates a new exporter
func NewExporter(
	db *database.DB,
	movementRepo *repository.MovementRepository,
	writer LedgerWriter,
	publisher *events.MovementEventPublisher,
	batchSize int,
	log *logger.Logger,
) *Exporter {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Exporter{
		db:           db,
		movementRepo: movementRepo,
		writer:       writer,
		publisher:    publisher,
		batchSize:    batchSize,
		logger:       log,
	}
}

// RunOnce drains the current backlog and returns the number of
// movements exported.
func (e *Exporter) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := e.exportBatch(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

func (e *Exporter) exportBatch(ctx context.Context) (int, error) {
	start := time.Now()
	batchID := start.Format(batchIDLayout)

	var exported int
	err := e.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		movements, err := e.movementRepo.ClaimUnexported(ctx, tx, e.batchSize)
		if err != nil {
			return err
		}
		if len(movements) == 0 {
			return nil
		}

		if err := e.writer.WriteBatch(ctx, batchID, movements); err != nil {
			return fmt.Errorf("ledger write failed: %w", err)
		}

		ids := make([]int64, len(movements))
		for i, m := range movements {
			ids[i] = m.ID
		}
		flagged, err := e.movementRepo.MarkExported(ctx, tx, ids)
		if err != nil {
			return err
		}
		exported = int(flagged)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if exported == 0 {
		return 0, nil
	}

	duration := time.Since(start).Seconds()
	e.logger.Info().
		Str("batch", batchID).
		Int("movements", exported).
		Float64("duration_seconds", duration).
		Msg("export batch written")

	e.publisher.PublishExportCompleted(ctx, batchID, exported, duration)
	return exported, nil
}
