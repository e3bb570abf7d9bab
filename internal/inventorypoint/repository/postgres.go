package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB  *sqlx.DB
	now func() time.Time
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db, now: time.Now}
}

const upsertPointQuery = `
    INSERT INTO inventory_points (
        id, asin, region, data_date, inventory_point_name,
        product_name, sku, category, sales_person, dev_name, product_tag, store,
        fba_available, fba_inbound, fba_sellable, fba_unsellable, local_available, inbound_shipped, total_inventory,
        sales_7days, total_sales, order_count, promotional_orders, sales_amount, average_price,
        ad_impressions, ad_clicks, ad_spend, ad_order_count, ad_sales,
        ad_ctr, ad_cvr, ad_cpc, ad_roas, acoas, average_sales, daily_sales_amount, turnover_days,
        inventory_status, is_effective_point, merge_type, store_count, merged_stores,
        created_at, updated_at
    )
    VALUES (
        :id, :asin, :region, :data_date, :inventory_point_name,
        :product_name, :sku, :category, :sales_person, :dev_name, :product_tag, :store,
        :fba_available, :fba_inbound, :fba_sellable, :fba_unsellable, :local_available, :inbound_shipped, :total_inventory,
        :sales_7days, :total_sales, :order_count, :promotional_orders, :sales_amount, :average_price,
        :ad_impressions, :ad_clicks, :ad_spend, :ad_order_count, :ad_sales,
        :ad_ctr, :ad_cvr, :ad_cpc, :ad_roas, :acoas, :average_sales, :daily_sales_amount, :turnover_days,
        :inventory_status, :is_effective_point, :merge_type, :store_count, :merged_stores,
        :created_at, :updated_at
    )
    ON CONFLICT (asin, region, data_date)
    DO UPDATE SET
        inventory_point_name = EXCLUDED.inventory_point_name,
        product_name = EXCLUDED.product_name,
        sku = EXCLUDED.sku,
        category = EXCLUDED.category,
        sales_person = EXCLUDED.sales_person,
        dev_name = EXCLUDED.dev_name,
        product_tag = EXCLUDED.product_tag,
        store = EXCLUDED.store,
        fba_available = EXCLUDED.fba_available,
        fba_inbound = EXCLUDED.fba_inbound,
        fba_sellable = EXCLUDED.fba_sellable,
        fba_unsellable = EXCLUDED.fba_unsellable,
        local_available = EXCLUDED.local_available,
        inbound_shipped = EXCLUDED.inbound_shipped,
        total_inventory = EXCLUDED.total_inventory,
        sales_7days = EXCLUDED.sales_7days,
        total_sales = EXCLUDED.total_sales,
        order_count = EXCLUDED.order_count,
        promotional_orders = EXCLUDED.promotional_orders,
        sales_amount = EXCLUDED.sales_amount,
        average_price = EXCLUDED.average_price,
        ad_impressions = EXCLUDED.ad_impressions,
        ad_clicks = EXCLUDED.ad_clicks,
        ad_spend = EXCLUDED.ad_spend,
        ad_order_count = EXCLUDED.ad_order_count,
        ad_sales = EXCLUDED.ad_sales,
        ad_ctr = EXCLUDED.ad_ctr,
        ad_cvr = EXCLUDED.ad_cvr,
        ad_cpc = EXCLUDED.ad_cpc,
        ad_roas = EXCLUDED.ad_roas,
        acoas = EXCLUDED.acoas,
        average_sales = EXCLUDED.average_sales,
        daily_sales_amount = EXCLUDED.daily_sales_amount,
        turnover_days = EXCLUDED.turnover_days,
        inventory_status = EXCLUDED.inventory_status,
        is_effective_point = EXCLUDED.is_effective_point,
        merge_type = EXCLUDED.merge_type,
        store_count = EXCLUDED.store_count,
        merged_stores = EXCLUDED.merged_stores,
        updated_at = EXCLUDED.updated_at
`

func (r *PGRepository) UpsertPoints(ctx context.Context, dataDate time.Time, points []model.InventoryPoint) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := r.now().UTC()
	for i := range points {
		p := points[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.DataDate = dataDate
		p.CreatedAt = now
		p.UpdatedAt = now

		if _, err := tx.NamedExecContext(ctx, upsertPointQuery, &p); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", p.InventoryPointName, err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) ListByDate(ctx context.Context, dataDate time.Time) ([]model.InventoryPoint, error) {
	query := r.DB.Rebind(`SELECT * FROM inventory_points WHERE data_date = ? ORDER BY region, asin`)

	var items []model.InventoryPoint
	if err := r.DB.SelectContext(ctx, &items, query, dataDate); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PGRepository) LogSyncTask(ctx context.Context, l *model.SyncTaskLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	query := `
        INSERT INTO sync_task_log (id, task_type, data_date, status, started_at, ended_at, stats_json)
        VALUES (:id, :task_type, :data_date, :status, :started_at, :ended_at, :stats_json)
    `
	_, err := r.DB.NamedExecContext(ctx, query, l)
	return err
}
