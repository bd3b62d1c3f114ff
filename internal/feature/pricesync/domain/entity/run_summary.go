package entity

import "time"

// Outcome is the result of synchronizing a single ticker.
type Outcome string

const (
	OutcomeAppended Outcome = "appended"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// TickerFailure records why a ticker could not be synchronized.
type TickerFailure struct {
	Ticker Ticker `json:"ticker"`
	Reason string `json:"reason"`
}

// RunSummary aggregates the outcome of one synchronization run.
type RunSummary struct {
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Universe     int             `json:"universe"`
	Attempted    int             `json:"attempted"`
	Appended     int             `json:"appended"`
	UpToDate     int             `json:"up_to_date"`
	NotFound     int             `json:"not_found"`
	Failed       int             `json:"failed"`
	RowsAppended int             `json:"rows_appended"`
	Failures     []TickerFailure `json:"failures,omitempty"`
}

// Record folds a single ticker outcome into the summary.
func (s *RunSummary) Record(t Ticker, o Outcome, rows int, err error) {
	s.Attempted++
	switch o {
	case OutcomeAppended:
		s.Appended++
		s.RowsAppended += rows
	case OutcomeUpToDate:
		s.UpToDate++
	case OutcomeNotFound:
		s.NotFound++
	case OutcomeFailed:
		s.Failed++
		reason := "unknown error"
		if err != nil {
			reason = err.Error()
		}
		s.Failures = append(s.Failures, TickerFailure{Ticker: t, Reason: reason})
	}
}

// Empty reports whether the run had nothing to synchronize.
func (s RunSummary) Empty() bool {
	return s.Universe == 0
}

// AllFailed reports whether at least one ticker was attempted and none succeeded.
func (s RunSummary) AllFailed() bool {
	return s.Attempted > 0 && s.Failed == s.Attempted
}
