// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"gorm.io/gorm"

	"stock_sync/internal/feature/pricesync/adapters"
	"stock_sync/internal/feature/pricesync/usecase"
	"stock_sync/internal/platform/externalapi/listing"
	"stock_sync/internal/platform/externalapi/yahoo"
	infrahttp "stock_sync/internal/platform/http"
	"stock_sync/internal/shared/ratelimiter"
)

// NewUniverseResolver creates a resolver over the configured listing sources.
// A non-empty override replaces discovery with a fixed list.
func NewUniverseResolver(override []string) *usecase.UniverseResolver {
	cfg := listing.LoadConfig()
	if len(override) > 0 {
		cfg.Tickers = override
	}
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return usecase.NewUniverseResolver(listing.NewSources(cfg, httpClient)...)
}

// NewSyncUsecase wires the full synchronization pipeline against db.
func NewSyncUsecase(db *gorm.DB, override []string) *usecase.SyncUsecase {
	cfg := yahoo.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	fetcher := yahoo.NewYahooChart(cfg, httpClient)
	table := adapters.NewPriceTable(db)
	limiter := ratelimiter.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)

	return usecase.NewSyncUsecase(NewUniverseResolver(override), table, fetcher, table, limiter)
}
