package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// ReorderScanJob evaluates active reorder policies for every tenant and
// logs the replenishment suggestions that fall out.
type ReorderScanJob struct {
	Service *inventory.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
}

// NewReorderScanJob initialises the reorder scan handler.
func NewReorderScanJob(service *inventory.Service, pool *pgxpool.Pool, logger *slog.Logger) *ReorderScanJob {
	return &ReorderScanJob{Service: service, Pool: pool, Logger: logger}
}

// Handle executes the reorder scan.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil || j.Pool == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	mode := inventory.ThresholdMode(payload.ThresholdMode)
	if mode != inventory.ThresholdModeMin && mode != inventory.ThresholdModeReorderPoint {
		mode = inventory.ThresholdModeReorderPoint
	}

	start := time.Now()
	logger := j.logger().With(slog.String("threshold_mode", string(mode)))
	logger.Info("starting reorder scan")

	tenants, err := j.tenants(ctx)
	if err != nil {
		logger.Error("list tenants", slog.Any("error", err))
		return err
	}

	total := 0
	for _, tenantID := range tenants {
		suggestions, err := j.Service.GetLowStock(ctx, tenantID, nil, mode)
		if err != nil {
			logger.Error("scan tenant", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return err
		}
		for _, s := range suggestions {
			logger.Warn("reorder suggested",
				slog.Int64("tenant_id", tenantID),
				slog.Int64("product_id", s.ProductID),
				slog.Int64("warehouse_id", s.WarehouseID),
				slog.Float64("available", s.Available),
				slog.Float64("threshold", s.Threshold),
				slog.Float64("suggested_qty", s.SuggestedQty),
			)
		}
		total += len(suggestions)
	}

	logger.Info("completed reorder scan",
		slog.Int("tenants", len(tenants)),
		slog.Int("suggestions", total),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ReorderScanJob) tenants(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT tenant_id FROM reorder_policies WHERE is_active ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *ReorderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReorderScan))
	}
	return slog.Default().With(slog.String("job", TaskReorderScan))
}
