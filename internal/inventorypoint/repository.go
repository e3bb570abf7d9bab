package inventorypoint

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
)

type Repository interface {
	// UpsertPoints replaces the points of dataDate keyed by (asin, region) in one transaction.
	UpsertPoints(ctx context.Context, dataDate time.Time, points []model.InventoryPoint) error
	ListByDate(ctx context.Context, dataDate time.Time) ([]model.InventoryPoint, error)

	LogSyncTask(ctx context.Context, log *model.SyncTaskLog) error
}
