package inventorypoint

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/dto"
)

type UseCase interface {
	SyncDate(ctx context.Context, dataDate time.Time) (*dto.SyncSummary, error)
	SyncRange(ctx context.Context, dates []time.Time) ([]dto.SyncSummary, error)
}

// Fetcher pulls raw rows from the ERP.
type Fetcher interface {
	ProductAnalytics(ctx context.Context, dataDate time.Time) ([]map[string]interface{}, error)
	FBAInventory(ctx context.Context) ([]map[string]interface{}, error)
	WarehouseItems(ctx context.Context) ([]map[string]interface{}, error)
}

// Locker guards a data date against concurrent runs.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type Publisher interface {
	PublishSynced(ctx context.Context, summary *dto.SyncSummary) error
}
