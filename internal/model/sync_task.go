package model

import "time"

const (
	TaskTypeInventoryPoints = "inventory_points"

	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncTaskLog is one append-only record of a per-date run.
type SyncTaskLog struct {
	ID        string    `db:"id"`
	TaskType  string    `db:"task_type"`
	DataDate  time.Time `db:"data_date"`
	Status    string    `db:"status"`
	StartedAt time.Time `db:"started_at"`
	EndedAt   time.Time `db:"ended_at"`
	StatsJSON string    `db:"stats_json"`
}
