// Package yahoo provides a client for the Yahoo Finance chart API.
package yahoo

import (
	"os"
	"strconv"
	"time"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; stock-sync/1.0)"
	defaultRateLimit = 60
)

// Config holds configuration for the Yahoo Finance chart client.
type Config struct {
	BaseURL   string        // Base URL for the API (e.g., "https://query1.finance.yahoo.com")
	UserAgent string        // Yahoo rejects requests without a browser-like agent
	Timeout   time.Duration // HTTP request timeout
	// RateLimitPerMin caps chart requests per minute. 0 disables pacing.
	RateLimitPerMin int
}

// LoadConfig loads Yahoo Finance configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		BaseURL:   os.Getenv("YAHOO_BASE_URL"),
		UserAgent: os.Getenv("YAHOO_USER_AGENT"),
		Timeout:   30 * time.Second,

		RateLimitPerMin: defaultRateLimit,
	}
	if v, err := strconv.Atoi(os.Getenv("YAHOO_RATE_LIMIT_PER_MIN")); err == nil && v >= 0 {
		cfg.RateLimitPerMin = v
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return cfg
}
