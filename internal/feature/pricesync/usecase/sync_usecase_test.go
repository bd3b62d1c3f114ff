package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_sync/internal/feature/pricesync/domain/entity"
)

var (
	ErrMarketAPI = errors.New("market API error")
	ErrDB        = errors.New("database error")
)

// memStore is an in-memory WatermarkStore and PriceSink.
type memStore struct {
	tables       map[entity.Ticker][]entity.PriceBar
	watermarkErr map[entity.Ticker]error
	appendErr    map[entity.Ticker]error
}

func newMemStore() *memStore {
	return &memStore{
		tables:       map[entity.Ticker][]entity.PriceBar{},
		watermarkErr: map[entity.Ticker]error{},
		appendErr:    map[entity.Ticker]error{},
	}
}

func (m *memStore) Watermark(ctx context.Context, t entity.Ticker) (entity.Watermark, error) {
	if err := m.watermarkErr[t]; err != nil {
		return entity.Watermark{}, err
	}
	rows, ok := m.tables[t]
	if !ok || len(rows) == 0 {
		return entity.Watermark{}, nil
	}
	latest := rows[0].Date
	for _, r := range rows {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return entity.Watermark{Date: latest, Valid: true}, nil
}

func (m *memStore) Append(ctx context.Context, t entity.Ticker, bars []entity.PriceBar) (int, error) {
	if err := m.appendErr[t]; err != nil {
		return 0, err
	}
	m.tables[t] = append(m.tables[t], bars...)
	return len(bars), nil
}

// mockPriceFetcher is a mock implementation of the PriceFetcher interface.
type mockPriceFetcher struct {
	FetchDailyFunc func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error)
	Calls          []entity.Ticker
	Froms          map[entity.Ticker][]time.Time
}

func (m *mockPriceFetcher) FetchDaily(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
	m.Calls = append(m.Calls, t)
	if m.Froms == nil {
		m.Froms = map[entity.Ticker][]time.Time{}
	}
	m.Froms[t] = append(m.Froms[t], from)
	if m.FetchDailyFunc != nil {
		return m.FetchDailyFunc(ctx, t, from, to)
	}
	return nil, errors.New("FetchDailyFunc is not implemented")
}

// mockRateLimiter is a mock implementation of the RateLimiterInterface.
type mockRateLimiter struct {
	WaitIfNeededCalls int
}

func (m *mockRateLimiter) WaitIfNeeded() {
	m.WaitIfNeededCalls++
}

// mockResolver returns a fixed universe.
type mockResolver struct {
	tickers []entity.Ticker
	err     error
}

func (m *mockResolver) Resolve(ctx context.Context) ([]entity.Ticker, error) {
	return m.tickers, m.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bars(dates ...time.Time) []entity.PriceBar {
	out := make([]entity.PriceBar, 0, len(dates))
	for i, d := range dates {
		out = append(out, entity.PriceBar{Date: d, Close: null.FloatFrom(100 + float64(i)), Volume: null.IntFrom(1)})
	}
	return out
}

// upstream serves a fixed series, honoring the requested window like a real source.
func upstream(series map[entity.Ticker][]entity.PriceBar) func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
	return func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
		var out []entity.PriceBar
		for _, b := range series[t] {
			if !b.Date.Before(from) && !b.Date.After(to) {
				out = append(out, b)
			}
		}
		return out, nil
	}
}

func newTestUsecase(resolver TickerResolver, store *memStore, fetcher PriceFetcher, now time.Time) (*SyncUsecase, *mockRateLimiter) {
	rl := &mockRateLimiter{}
	uc := NewSyncUsecase(resolver, store, fetcher, store, rl)
	uc.now = func() time.Time { return now }
	return uc, rl
}

func TestSyncUsecase_FirstRunThenIdempotentSecondRun(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	fetcher := &mockPriceFetcher{FetchDailyFunc: upstream(map[entity.Ticker][]entity.PriceBar{
		"AAPL": bars(day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)),
	})}
	uc, rl := newTestUsecase(&mockResolver{tickers: []entity.Ticker{"AAPL"}}, store, fetcher, day(2024, 1, 5).Add(20*time.Hour))

	first := uc.Run(ctx)

	assert.Equal(t, 1, first.Attempted)
	assert.Equal(t, 1, first.Appended)
	assert.Equal(t, 3, first.RowsAppended)
	assert.Len(t, store.tables["AAPL"], 3)
	assert.Equal(t, entity.EpochFloor, fetcher.Froms["AAPL"][0])

	second := uc.Run(ctx)

	assert.Equal(t, 0, second.RowsAppended)
	assert.Equal(t, 1, second.UpToDate)
	assert.Len(t, store.tables["AAPL"], 3)
	assert.Equal(t, day(2024, 1, 5), fetcher.Froms["AAPL"][1])
	assert.Equal(t, 2, rl.WaitIfNeededCalls)
}

func TestSyncUsecase_WatermarkMonotonicAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	series := map[entity.Ticker][]entity.PriceBar{"MSFT": bars(day(2024, 1, 2), day(2024, 1, 3))}
	fetcher := &mockPriceFetcher{FetchDailyFunc: upstream(series)}
	uc, _ := newTestUsecase(&mockResolver{tickers: []entity.Ticker{"MSFT"}}, store, fetcher, day(2024, 1, 10))

	var maxes []time.Time
	for i := 0; i < 3; i++ {
		uc.Run(ctx)
		wm, err := store.Watermark(ctx, "MSFT")
		require.NoError(t, err)
		maxes = append(maxes, wm.Date)
		// new data shows up between runs
		series["MSFT"] = append(series["MSFT"], bars(day(2024, 1, 4+i))...)
	}

	assert.True(t, sort.SliceIsSorted(maxes, func(i, j int) bool { return maxes[i].Before(maxes[j]) }))
	seen := map[time.Time]bool{}
	for _, b := range store.tables["MSFT"] {
		assert.False(t, seen[b.Date], "duplicate date %s", b.Date)
		seen[b.Date] = true
	}
	assert.Len(t, store.tables["MSFT"], 4)
}

func TestSyncUsecase_BulkheadIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.watermarkErr["BAD1"] = fmt.Errorf("%w: garbage", ErrBadWatermark)
	store.appendErr["BAD3"] = ErrDB

	fetcher := &mockPriceFetcher{FetchDailyFunc: func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
		switch t {
		case "BAD2":
			return nil, ErrMarketAPI
		case "PANIC":
			panic("nil map")
		case "GONE":
			return nil, fmt.Errorf("%w: delisted", ErrTickerNotFound)
		case "EMPTY":
			return nil, nil
		}
		return bars(day(2024, 1, 2)), nil
	}}
	tickers := []entity.Ticker{"AAA", "BAD1", "BAD2", "BAD3", "EMPTY", "GONE", "PANIC", "ZZZ"}
	uc, _ := newTestUsecase(&mockResolver{tickers: tickers}, store, fetcher, day(2024, 1, 3))

	summary := uc.Run(ctx)

	assert.Equal(t, len(tickers), summary.Attempted)
	assert.Equal(t, 2, summary.Appended)
	assert.Equal(t, 1, summary.UpToDate)
	assert.Equal(t, 1, summary.NotFound)
	assert.Equal(t, 4, summary.Failed)
	assert.Len(t, store.tables["AAA"], 1)
	assert.Len(t, store.tables["ZZZ"], 1)
	assert.NotContains(t, fetcher.Calls, entity.Ticker("BAD1"), "fetch must not run without a watermark")

	failed := map[entity.Ticker]string{}
	for _, f := range summary.Failures {
		failed[f.Ticker] = f.Reason
	}
	assert.Contains(t, failed["BAD1"], ErrBadWatermark.Error())
	assert.Contains(t, failed["BAD2"], ErrMarketAPI.Error())
	assert.Contains(t, failed["BAD3"], ErrDB.Error())
	assert.Contains(t, failed["PANIC"], "panic")
}

func TestSyncUsecase_syncOne(t *testing.T) {
	now := day(2024, 3, 1).Add(15 * time.Hour)

	tests := []struct {
		name        string
		existing    []entity.PriceBar
		fetch       func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error)
		wantOutcome entity.Outcome
		wantRows    int
		wantFetch   bool
		wantFrom    time.Time
		wantErr     error
	}{
		{
			name:        "no table fetches from epoch floor",
			fetch:       upstream(map[entity.Ticker][]entity.PriceBar{"T": bars(day(2024, 2, 28))}),
			wantOutcome: entity.OutcomeAppended,
			wantRows:    1,
			wantFetch:   true,
			wantFrom:    entity.EpochFloor,
		},
		{
			name:        "existing rows fetch from watermark plus one day",
			existing:    bars(day(2024, 2, 27)),
			fetch:       upstream(map[entity.Ticker][]entity.PriceBar{"T": bars(day(2024, 2, 27), day(2024, 2, 28))}),
			wantOutcome: entity.OutcomeAppended,
			wantRows:    1,
			wantFetch:   true,
			wantFrom:    day(2024, 2, 28),
		},
		{
			name:     "over-delivered rows before the window are dropped",
			existing: bars(day(2024, 2, 27)),
			fetch: func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
				return bars(day(2024, 2, 26), day(2024, 2, 27)), nil
			},
			wantOutcome: entity.OutcomeUpToDate,
			wantFetch:   true,
			wantFrom:    day(2024, 2, 28),
		},
		{
			name:        "watermark today skips the request",
			existing:    bars(day(2024, 3, 1)),
			wantOutcome: entity.OutcomeUpToDate,
			wantFetch:   false,
		},
		{
			name: "fetch error is reported",
			fetch: func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
				return nil, ErrMarketAPI
			},
			wantOutcome: entity.OutcomeFailed,
			wantFetch:   true,
			wantFrom:    entity.EpochFloor,
			wantErr:     ErrMarketAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.existing != nil {
				store.tables["T"] = tt.existing
			}
			fetcher := &mockPriceFetcher{FetchDailyFunc: tt.fetch}
			uc, rl := newTestUsecase(&mockResolver{}, store, fetcher, now)

			outcome, rows, err := uc.syncOne(context.Background(), "T")

			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantRows, rows)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if !tt.wantFetch {
				assert.Empty(t, fetcher.Calls)
				assert.Zero(t, rl.WaitIfNeededCalls)
				return
			}
			require.Len(t, fetcher.Froms["T"], 1)
			assert.Equal(t, tt.wantFrom, fetcher.Froms["T"][0])
		})
	}
}

func TestSyncUsecase_Run_EmptyUniverse(t *testing.T) {
	fetcher := &mockPriceFetcher{}
	uc, _ := newTestUsecase(&mockResolver{err: errors.New("all sources down")}, newMemStore(), fetcher, day(2024, 1, 2))

	summary := uc.Run(context.Background())

	assert.True(t, summary.Empty())
	assert.Zero(t, summary.Attempted)
	assert.Empty(t, fetcher.Calls)
	assert.False(t, summary.FinishedAt.IsZero())
}

func TestSyncUsecase_RunTickers_SequentialOrder(t *testing.T) {
	fetcher := &mockPriceFetcher{FetchDailyFunc: func(ctx context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
		return nil, nil
	}}
	uc, _ := newTestUsecase(&mockResolver{}, newMemStore(), fetcher, day(2024, 1, 2))

	uc.RunTickers(context.Background(), []entity.Ticker{"C", "A", "B"})

	assert.Equal(t, []entity.Ticker{"C", "A", "B"}, fetcher.Calls)
}

func TestSyncUsecase_RunTickers_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &mockPriceFetcher{FetchDailyFunc: func(_ context.Context, t entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
		if t == "B" {
			cancel()
		}
		return nil, nil
	}}
	uc, _ := newTestUsecase(&mockResolver{}, newMemStore(), fetcher, day(2024, 1, 2))

	summary := uc.RunTickers(ctx, []entity.Ticker{"A", "B", "C", "D"})

	assert.Equal(t, []entity.Ticker{"A", "B"}, fetcher.Calls)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 4, summary.Universe)
}
