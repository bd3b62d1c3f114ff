// Package usecase implements ticker discovery and incremental price synchronization.
package usecase

import "errors"

var (
	// ErrBadWatermark is returned when a ticker's table exists but its latest
	// stored date cannot be interpreted as a calendar date.
	ErrBadWatermark = errors.New("stored watermark is not a valid date")

	// ErrTickerNotFound is returned by a PriceFetcher when the upstream source
	// does not know the ticker at all (delisted or renamed).
	ErrTickerNotFound = errors.New("ticker not found upstream")
)
