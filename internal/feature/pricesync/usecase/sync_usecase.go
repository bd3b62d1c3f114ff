package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_sync/internal/feature/pricesync/domain/entity"
	"stock_sync/internal/shared/ratelimiter"
)

// progressEvery controls how often run progress is logged.
const progressEvery = 100

// TickerResolver produces the ticker universe for a run.
type TickerResolver interface {
	Resolve(ctx context.Context) ([]entity.Ticker, error)
}

// WatermarkStore reads the latest persisted date for a ticker.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type WatermarkStore interface {
	Watermark(ctx context.Context, ticker entity.Ticker) (entity.Watermark, error)
}

// PriceFetcher retrieves adjusted daily bars for a ticker within [from, to].
// It returns no bars and no error when nothing new is available.
type PriceFetcher interface {
	FetchDaily(ctx context.Context, ticker entity.Ticker, from, to time.Time) ([]entity.PriceBar, error)
}

// PriceSink appends bars to a ticker's durable table, creating it when absent.
// The write is all-or-nothing per call.
type PriceSink interface {
	Append(ctx context.Context, ticker entity.Ticker, bars []entity.PriceBar) (int, error)
}

// SyncUsecase pulls new daily bars for every ticker in the universe and
// appends them to storage, one ticker at a time.
type SyncUsecase struct {
	resolver    TickerResolver
	watermarks  WatermarkStore
	fetcher     PriceFetcher
	sink        PriceSink
	rateLimiter ratelimiter.RateLimiterInterface
	now         func() time.Time
}

// NewSyncUsecase creates a new SyncUsecase.
func NewSyncUsecase(resolver TickerResolver, watermarks WatermarkStore, fetcher PriceFetcher, sink PriceSink, rateLimiter ratelimiter.RateLimiterInterface) *SyncUsecase {
	return &SyncUsecase{
		resolver:    resolver,
		watermarks:  watermarks,
		fetcher:     fetcher,
		sink:        sink,
		rateLimiter: rateLimiter,
		now:         time.Now,
	}
}

// Run resolves the ticker universe and synchronizes every ticker in it.
func (u *SyncUsecase) Run(ctx context.Context) entity.RunSummary {
	tickers, err := u.resolver.Resolve(ctx)
	if err != nil {
		slog.Error("failed to resolve ticker universe", "error", err)
		tickers = nil
	}
	return u.RunTickers(ctx, tickers)
}

// RunTickers synchronizes the given tickers sequentially. A failure on one
// ticker is logged and recorded, and never stops the remaining tickers.
func (u *SyncUsecase) RunTickers(ctx context.Context, tickers []entity.Ticker) entity.RunSummary {
	summary := entity.RunSummary{StartedAt: u.now(), Universe: len(tickers)}
	if len(tickers) == 0 {
		slog.Warn("no tickers to sync")
		summary.FinishedAt = u.now()
		return summary
	}

	slog.Info("starting price sync", "tickers", len(tickers))
	for i, t := range tickers {
		if ctx.Err() != nil {
			slog.Warn("price sync interrupted", "done", i, "total", len(tickers), "error", ctx.Err())
			break
		}
		outcome, rows, err := u.syncOneSafe(ctx, t)
		if err != nil {
			// 1つの銘柄でエラーが発生しても処理を止めずにログに出力し、次の銘柄へ進む
			slog.Error("failed to sync ticker", "ticker", t, "error", err)
		}
		summary.Record(t, outcome, rows, err)

		if (i+1)%progressEvery == 0 {
			slog.Info("price sync progress", "done", i+1, "total", len(tickers), "failed", summary.Failed)
		}
	}
	summary.FinishedAt = u.now()

	slog.Info("price sync finished",
		"attempted", summary.Attempted,
		"appended", summary.Appended,
		"up_to_date", summary.UpToDate,
		"not_found", summary.NotFound,
		"failed", summary.Failed,
		"rows", summary.RowsAppended,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary
}

// syncOneSafe runs syncOne, converting a panic into a per-ticker failure.
func (u *SyncUsecase) syncOneSafe(ctx context.Context, t entity.Ticker) (outcome entity.Outcome, rows int, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, rows, err = entity.OutcomeFailed, 0, fmt.Errorf("panic: %v", r)
		}
	}()
	return u.syncOne(ctx, t)
}

// syncOne computes the fetch window from the stored watermark, fetches the
// new bars and appends them.
func (u *SyncUsecase) syncOne(ctx context.Context, t entity.Ticker) (entity.Outcome, int, error) {
	wm, err := u.watermarks.Watermark(ctx, t)
	if err != nil {
		return entity.OutcomeFailed, 0, fmt.Errorf("read watermark: %w", err)
	}

	from := wm.NextStart()
	to := u.now()
	if from.After(entity.TruncateToDate(to)) {
		slog.Debug("ticker already up to date", "ticker", t, "watermark", wm.Date.Format(time.DateOnly))
		return entity.OutcomeUpToDate, 0, nil
	}

	if u.rateLimiter != nil {
		u.rateLimiter.WaitIfNeeded()
	}
	bars, err := u.fetcher.FetchDaily(ctx, t, from, to)
	if errors.Is(err, ErrTickerNotFound) {
		slog.Info("ticker not found upstream", "ticker", t)
		return entity.OutcomeNotFound, 0, nil
	}
	if err != nil {
		return entity.OutcomeFailed, 0, fmt.Errorf("fetch from %s: %w", from.Format(time.DateOnly), err)
	}
	bars = keepFrom(bars, from)
	if len(bars) == 0 {
		slog.Info("no new data", "ticker", t, "since", from.Format(time.DateOnly))
		return entity.OutcomeUpToDate, 0, nil
	}

	n, err := u.sink.Append(ctx, t, bars)
	if err != nil {
		return entity.OutcomeFailed, 0, fmt.Errorf("append %d bars: %w", len(bars), err)
	}
	slog.Info("appended bars", "ticker", t, "rows", n, "table", t.TableName())
	return entity.OutcomeAppended, n, nil
}

// keepFrom drops bars dated before from, so a source that over-delivers can
// never produce a second row for an already persisted date.
func keepFrom(bars []entity.PriceBar, from time.Time) []entity.PriceBar {
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(from) {
			continue
		}
		out = append(out, b)
	}
	return out
}
