// Package jobs holds the background workloads that run outside the
// request path: reorder scans, lot expiry alerts and idempotency-key
// cleanup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderScan evaluates reorder policies for every tenant.
	TaskReorderScan = "inventory:reorder_scan"
	// TaskExpiryAlert reports lots expiring within the alert window.
	TaskExpiryAlert = "inventory:expiry_alert"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "inventory:idempotency_cleanup"
)

// ReorderScanPayload configures a reorder scan run.
type ReorderScanPayload struct {
	ThresholdMode string `json:"threshold_mode"`
}

// NewReorderScanTask constructs a reorder scan task.
func NewReorderScanTask(thresholdMode string) (*asynq.Task, error) {
	data, err := json.Marshal(ReorderScanPayload{ThresholdMode: thresholdMode})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, data), nil
}

// ExpiryAlertPayload configures an expiry alert run.
type ExpiryAlertPayload struct {
	Days int `json:"days"`
}

// NewExpiryAlertTask constructs an expiry alert task.
func NewExpiryAlertTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(ExpiryAlertPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryAlert, data), nil
}

// IdempotencyCleanupPayload configures the idempotency cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
