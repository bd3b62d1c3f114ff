package usecase

import (
	"context"
	"log/slog"
	"sort"

	"stock_sync/internal/feature/pricesync/domain/entity"
)

// ListingSource returns candidate tickers from one upstream listing
// (index constituents, exchange directory, ETF list, ...).
type ListingSource interface {
	Name() string
	ListTickers(ctx context.Context) ([]string, error)
}

// UniverseResolver aggregates every listing source into the set of tickers to sync.
type UniverseResolver struct {
	sources []ListingSource
}

// NewUniverseResolver creates a resolver over the given sources.
func NewUniverseResolver(sources ...ListingSource) *UniverseResolver {
	return &UniverseResolver{sources: sources}
}

// Resolve returns the deduplicated, sorted, valid tickers across all sources.
// A failing source is logged and skipped; if every source fails the result is
// empty and no error is returned.
func (r *UniverseResolver) Resolve(ctx context.Context) ([]entity.Ticker, error) {
	seen := make(map[string]struct{})
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := src.ListTickers(ctx)
		if err != nil {
			slog.Error("failed to fetch listing", "source", src.Name(), "error", err)
			continue
		}
		slog.Info("fetched listing", "source", src.Name(), "count", len(got))
		for _, s := range got {
			seen[s] = struct{}{}
		}
	}

	candidates := make([]string, 0, len(seen))
	for s := range seen {
		candidates = append(candidates, s)
	}
	sort.Strings(candidates)

	out := make([]entity.Ticker, 0, len(candidates))
	for _, s := range candidates {
		t := entity.Ticker(s)
		if !t.Valid() {
			slog.Debug("dropping invalid ticker", "ticker", s)
			continue
		}
		out = append(out, t)
	}
	slog.Info("resolved ticker universe", "candidates", len(candidates), "valid", len(out))
	return out, nil
}
