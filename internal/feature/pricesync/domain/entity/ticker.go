// Package entity defines the domain models for the pricesync feature.
package entity

import (
	"regexp"
	"strings"
)

// MaxTickerLength is bounded by the MySQL identifier length limit, since each
// ticker becomes its own table name.
const MaxTickerLength = 64

var tickerPattern = regexp.MustCompile(`^[A-Z.-]+$`)

// tableNameReplacer maps the separators allowed in tickers onto characters
// that are safe in an unquoted SQL identifier.
var tableNameReplacer = strings.NewReplacer(".", "_", "-", "_")

// Ticker is a tradable instrument identifier (e.g. "AAPL", "BRK.B").
type Ticker string

// Valid reports whether the ticker uses only uppercase letters, '.' and '-'
// and fits in a storage identifier.
func (t Ticker) Valid() bool {
	return len(t) > 0 && len(t) <= MaxTickerLength && tickerPattern.MatchString(string(t))
}

// TableName returns the sanitized name of the table that stores this ticker's bars.
func (t Ticker) TableName() string {
	return tableNameReplacer.Replace(string(t))
}

func (t Ticker) String() string {
	return string(t)
}
