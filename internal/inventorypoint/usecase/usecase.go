package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/cache"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/erp"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/merge"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/normalize"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/observability/metrics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/recompute"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/validate"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultLockTTL = 10 * time.Minute

// PointValidator gates the commit of a data date; a non-nil error aborts it.
type PointValidator interface {
	Validate(dataDate time.Time, points []model.InventoryPoint) (validate.Report, error)
}

type Options struct {
	// EnrichInventory overlays the FBA and warehouse listings on the analytics rows.
	EnrichInventory bool
	LockTTL         time.Duration
}

// Params wires the sync pipeline. Locker, Publisher, Metrics and
// TracerProvider are optional; spans default to the global provider.
type Params struct {
	Repo       inventorypoint.Repository
	Fetcher    inventorypoint.Fetcher
	Normalizer *normalize.Normalizer
	Engine     *merge.Engine
	Validator  PointValidator
	Locker     inventorypoint.Locker
	Publisher  inventorypoint.Publisher
	Metrics    *metrics.SyncMetrics
	Logger     logger.ZapLogger
	Options    Options

	TracerProvider trace.TracerProvider
}

type inventoryPointUseCase struct {
	repo       inventorypoint.Repository
	fetcher    inventorypoint.Fetcher
	normalizer *normalize.Normalizer
	engine     *merge.Engine
	validator  PointValidator
	locker     inventorypoint.Locker
	publisher  inventorypoint.Publisher
	metrics    *metrics.SyncMetrics
	logger     logger.ZapLogger
	tracer     trace.Tracer
	opts       Options
	now        func() time.Time
}

func NewInventoryPointUseCase(p Params) inventorypoint.UseCase {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if p.Normalizer == nil {
		p.Normalizer = normalize.NewNormalizer(nil, log.Named("normalize"))
	}
	if p.Engine == nil {
		p.Engine = merge.NewEngine()
	}
	if p.Validator == nil {
		p.Validator = validate.NewValidator(log.Named("validate"))
	}
	if p.TracerProvider == nil {
		p.TracerProvider = otel.GetTracerProvider()
	}
	if p.Options.LockTTL <= 0 {
		p.Options.LockTTL = defaultLockTTL
	}
	return &inventoryPointUseCase{
		repo:       p.Repo,
		fetcher:    p.Fetcher,
		normalizer: p.Normalizer,
		engine:     p.Engine,
		validator:  p.Validator,
		locker:     p.Locker,
		publisher:  p.Publisher,
		metrics:    p.Metrics,
		logger:     log,
		tracer:     p.TracerProvider.Tracer("inventorypoint"),
		opts:       p.Options,
		now:        time.Now,
	}
}

// SyncDate rebuilds the inventory points of one data date. Nothing is
// committed unless every stage succeeds.
func (uc *inventoryPointUseCase) SyncDate(ctx context.Context, dataDate time.Time) (*dto.SyncSummary, error) {
	dataDate = dto.Day(dataDate)
	day := dataDate.Format(dto.DateLayout)

	ctx, span := uc.tracer.Start(ctx, "inventorypoint.SyncDate", trace.WithAttributes(attribute.String("data_date", day)))
	defer span.End()

	summary := &dto.SyncSummary{
		RunID:     uuid.New().String(),
		DataDate:  day,
		StartedAt: uc.now().UTC(),
	}

	pointsByRegion, err := uc.syncDate(ctx, dataDate, summary)
	summary.EndedAt = uc.now().UTC()

	if err != nil {
		summary.Status = model.SyncStatusFailed
		summary.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		uc.logger.Error("inventory point sync failed",
			zap.String("data_date", day),
			zap.String("run_id", summary.RunID),
			zap.Error(err),
		)
	} else {
		summary.Status = model.SyncStatusSuccess
		span.SetAttributes(attribute.Int("points", summary.PointsOut))
		uc.logger.Info("inventory point sync finished",
			zap.String("data_date", day),
			zap.String("run_id", summary.RunID),
			zap.Int("rows_in", summary.RowsIn),
			zap.Int("points", summary.PointsOut),
			zap.Int("effective_points", summary.EffectivePoints),
			zap.Int("warnings", summary.Warnings),
		)
	}

	// The audit row and metrics are written even when ctx was cancelled.
	bg := context.WithoutCancel(ctx)
	uc.logTask(bg, dataDate, summary)
	if uc.metrics != nil {
		uc.metrics.ObservePoints(pointsByRegion, summary.Warnings)
		uc.metrics.ObserveRun(summary.Status, summary.EndedAt.Sub(summary.StartedAt).Seconds(), float64(summary.EndedAt.Unix()))
	}
	if err == nil && uc.publisher != nil {
		if perr := uc.publisher.PublishSynced(bg, summary); perr != nil {
			uc.logger.Warn("failed to publish sync event", zap.String("data_date", day), zap.Error(perr))
		}
	}

	return summary, err
}

func (uc *inventoryPointUseCase) syncDate(ctx context.Context, dataDate time.Time, summary *dto.SyncSummary) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if uc.locker != nil {
		lockKey := fmt.Sprintf("lock:inventory_points:%s", summary.DataDate)
		lockValue := uuid.New().String()
		ok, err := uc.locker.AcquireLock(ctx, lockKey, lockValue, uc.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", lockKey, cache.ErrLockNotAcquired)
		}
		defer func() {
			if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockValue); err != nil {
				uc.logger.Warn("failed to release lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	rows, err := uc.fetcher.ProductAnalytics(ctx, dataDate)
	if err != nil {
		return nil, fmt.Errorf("fetch product analytics: %w", err)
	}

	observations, stats := uc.normalizer.NormalizeAll(rows, dataDate)
	summary.RowsIn = stats.RowsIn
	summary.Observations = stats.Normalized
	summary.DroppedShape = stats.DroppedShape
	summary.DroppedUnknownRegion = stats.DroppedUnknownRegion
	summary.CoercedValues = stats.CoercedValues
	if uc.metrics != nil {
		uc.metrics.ObserveRows(stats.RowsIn, stats.Normalized, stats.DroppedShape, stats.DroppedUnknownRegion)
	}

	if uc.opts.EnrichInventory {
		if err := uc.enrich(ctx, observations); err != nil {
			return nil, err
		}
	}

	points, skipped := uc.engine.Merge(dataDate, observations)
	if skipped > 0 {
		uc.logger.Warn("skipped observations without region", zap.Int("count", skipped))
	}
	recompute.ApplyAll(points)

	report, err := uc.validator.Validate(dataDate, points)
	summary.Warnings = len(report.Warnings)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := uc.repo.UpsertPoints(ctx, dataDate, points); err != nil {
		return nil, fmt.Errorf("failed to upsert inventory points: %w", err)
	}

	byRegion := make(map[string]int)
	for _, p := range points {
		byRegion[p.Region]++
		if p.IsEffectivePoint {
			summary.EffectivePoints++
		}
	}
	summary.PointsOut = len(points)
	return byRegion, nil
}

func (uc *inventoryPointUseCase) enrich(ctx context.Context, observations []model.Observation) error {
	fbaRows, err := uc.fetcher.FBAInventory(ctx)
	if err != nil {
		return fmt.Errorf("fetch fba inventory: %w", err)
	}
	warehouseRows, err := uc.fetcher.WarehouseItems(ctx)
	if err != nil {
		return fmt.Errorf("fetch warehouse items: %w", err)
	}

	fbaUpdated := normalize.NewFBASnapshot(fbaRows).Apply(observations)
	localUpdated := normalize.NewWarehouseStock(warehouseRows).Apply(observations)
	uc.logger.Debug("enriched observations",
		zap.Int("fba_updated", fbaUpdated),
		zap.Int("local_updated", localUpdated),
	)
	return nil
}

func (uc *inventoryPointUseCase) logTask(ctx context.Context, dataDate time.Time, summary *dto.SyncSummary) {
	stats, err := json.Marshal(summary)
	if err != nil {
		stats = []byte("{}")
	}
	entry := &model.SyncTaskLog{
		TaskType:  model.TaskTypeInventoryPoints,
		DataDate:  dataDate,
		Status:    summary.Status,
		StartedAt: summary.StartedAt,
		EndedAt:   summary.EndedAt,
		StatsJSON: string(stats),
	}
	if err := uc.repo.LogSyncTask(ctx, entry); err != nil {
		uc.logger.Error("failed to write sync task log", zap.String("data_date", summary.DataDate), zap.Error(err))
	}
}

// SyncRange syncs dates in order. A failed date does not stop the others,
// except for auth failures and cancellation.
func (uc *inventoryPointUseCase) SyncRange(ctx context.Context, dates []time.Time) ([]dto.SyncSummary, error) {
	summaries := make([]dto.SyncSummary, 0, len(dates))
	var failures []error

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return summaries, errors.Join(append(failures, err)...)
		}

		summary, err := uc.SyncDate(ctx, d)
		summaries = append(summaries, *summary)
		if err == nil {
			continue
		}
		failures = append(failures, fmt.Errorf("%s: %w", summary.DataDate, err))
		if errors.Is(err, erp.ErrAuth) {
			break
		}
	}

	return summaries, errors.Join(failures...)
}
