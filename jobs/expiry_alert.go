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

// ExpiryAlertJob reports lots that expire within the alert window.
type ExpiryAlertJob struct {
	Service *inventory.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
}

// NewExpiryAlertJob initialises the expiry alert handler.
func NewExpiryAlertJob(service *inventory.Service, pool *pgxpool.Pool, logger *slog.Logger) *ExpiryAlertJob {
	return &ExpiryAlertJob{Service: service, Pool: pool, Logger: logger}
}

// Handle executes the expiry alert scan.
func (j *ExpiryAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil || j.Pool == nil {
		return errors.New("expiry alert: handler not configured")
	}
	var payload ExpiryAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 30
	}

	start := time.Now()
	logger := j.logger().With(slog.Int("days", payload.Days))
	logger.Info("starting expiry alert scan")

	tenants, err := j.tenants(ctx)
	if err != nil {
		logger.Error("list tenants", slog.Any("error", err))
		return err
	}

	total := 0
	for _, tenantID := range tenants {
		summary, err := j.Service.GetExpirySummary(ctx, tenantID, payload.Days)
		if err != nil {
			logger.Error("scan tenant", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return err
		}
		for _, lot := range summary.Lots {
			logger.Warn("lot expiring",
				slog.Int64("tenant_id", tenantID),
				slog.Int64("product_id", lot.ProductID),
				slog.String("lot_number", lot.LotNumber),
				slog.Float64("qty_on_hand", lot.QtyOnHand),
				slog.Time("expiry_date", *lot.ExpiryDate),
			)
		}
		total += len(summary.Lots)
	}

	logger.Info("completed expiry alert scan",
		slog.Int("tenants", len(tenants)),
		slog.Int("expiring_lots", total),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ExpiryAlertJob) tenants(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT tenant_id FROM inventory_lots
WHERE status='AVAILABLE' AND expiry_date IS NOT NULL ORDER BY tenant_id`)
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

func (j *ExpiryAlertJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpiryAlert))
	}
	return slog.Default().With(slog.String("job", TaskExpiryAlert))
}
