// Package listing provides ticker listing sources (index constituents,
// exchange symbol directories, ETF lists) for universe discovery.
package listing

import (
	"os"
	"strings"
	"time"
)

const (
	defaultSP500URL  = "https://raw.githubusercontent.com/datasets/s-and-p-500-companies/main/data/constituents.csv"
	defaultNasdaqURL = "https://www.nasdaqtrader.com/dynamic/symdir/nasdaqlisted.txt"
	defaultOtherURL  = "https://www.nasdaqtrader.com/dynamic/symdir/otherlisted.txt"
)

// Config holds the listing endpoints. An empty URL disables that source.
// The Dow source is opt-in: its members are already covered by the S&P 500.
type Config struct {
	SP500URL  string
	DowURL    string
	NasdaqURL string
	OtherURL  string
	// Tickers, when set, replaces discovery with a fixed list.
	Tickers []string
	Timeout time.Duration
}

// LoadConfig loads listing configuration from environment variables.
func LoadConfig() Config {
	return Config{
		SP500URL:  envOr("LISTING_SP500_URL", defaultSP500URL),
		DowURL:    os.Getenv("LISTING_DOW_URL"),
		NasdaqURL: envOr("LISTING_NASDAQ_URL", defaultNasdaqURL),
		OtherURL:  envOr("LISTING_OTHER_URL", defaultOtherURL),
		Tickers:   SplitTickers(os.Getenv("SYNC_TICKERS")),
		Timeout:   30 * time.Second,
	}
}

// SplitTickers parses a comma or whitespace separated ticker list.
func SplitTickers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToUpper(strings.TrimSpace(f)))
	}
	return out
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
