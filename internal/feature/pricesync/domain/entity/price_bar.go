package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// EpochFloor is the earliest date requested for a ticker with no stored history.
var EpochFloor = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// PriceBar is one daily OHLCV row for a ticker. Prices are already adjusted
// for splits and dividends. Values the source could not provide are null.
type PriceBar struct {
	Date   time.Time // calendar date, midnight UTC
	Open   null.Float
	High   null.Float
	Low    null.Float
	Close  null.Float
	Volume null.Int
}

// Watermark is the latest date persisted for a ticker.
// The zero value means no history exists.
type Watermark struct {
	Date  time.Time
	Valid bool
}

// NextStart returns the first date that still needs to be fetched.
func (w Watermark) NextStart() time.Time {
	if !w.Valid {
		return EpochFloor
	}
	return TruncateToDate(w.Date).AddDate(0, 0, 1)
}

// TruncateToDate drops the time of day, keeping the calendar date of t in its
// own location, and returns it as midnight UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
