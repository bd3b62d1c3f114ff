// Package entity defines the domain models for the synctask feature.
package entity

import (
	"time"

	pricesync "stock_sync/internal/feature/pricesync/domain/entity"
)

// RunRecord describes a finished background synchronization run.
type RunRecord struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Error      string               `json:"error,omitempty"`
	Summary    pricesync.RunSummary `json:"summary"`
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Running   bool       `json:"running"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Last      *RunRecord `json:"last,omitempty"`
}
