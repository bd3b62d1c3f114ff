// Package usecase implements the single-flight coordinator that runs price
// synchronization in the background.
package usecase

import "errors"

var (
	// ErrAlreadyRunning is returned when a trigger arrives while a run is in progress.
	ErrAlreadyRunning = errors.New("a sync task is already running")

	// ErrShuttingDown is returned when a trigger arrives after Shutdown.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)
