package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"stock_sync/internal/feature/pricesync/domain/entity"
	"stock_sync/internal/feature/pricesync/usecase"
	"stock_sync/internal/platform/externalapi/yahoo/dto"
)

const (
	notFoundCode = "Not Found"
	noDataPrefix = "Data doesn't exist"
)

// YahooChart is a PriceFetcher backed by the Yahoo Finance chart API.
type YahooChart struct {
	cfg    Config
	client *http.Client
}

// YahooChartがPriceFetcherを実装していることをコンパイル時に検証します。
var _ usecase.PriceFetcher = (*YahooChart)(nil)

// NewYahooChart creates a chart client with the given configuration and HTTP client.
func NewYahooChart(cfg Config, client *http.Client) *YahooChart {
	return &YahooChart{cfg: cfg, client: client}
}

// FetchDaily returns the split- and dividend-adjusted daily bars of ticker
// dated from `from` onward, through `to`. Bars are sorted by date.
func (y *YahooChart) FetchDaily(ctx context.Context, ticker entity.Ticker, from, to time.Time) ([]entity.PriceBar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("includeAdjustedClose", "true")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.cfg.BaseURL, url.PathEscape(string(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", y.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	// Yahoo answers unknown symbols with 404 and a JSON error body.
	var body dto.ChartResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&body)
	if e := body.Chart.Error; e != nil {
		if e.Code == notFoundCode {
			return nil, fmt.Errorf("%w: %s", usecase.ErrTickerNotFound, e.Description)
		}
		// A window without trading sessions (weekend, holiday, same-day rerun).
		if strings.HasPrefix(e.Description, noDataPrefix) {
			return nil, nil
		}
	}
	if res.StatusCode >= 400 {
		if e := body.Chart.Error; e != nil {
			return nil, fmt.Errorf("yahoo http %d: %s: %s", res.StatusCode, e.Code, e.Description)
		}
		return nil, fmt.Errorf("yahoo http %d", res.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode chart response: %w", decodeErr)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}

	return toBars(body.Chart.Result[0], entity.TruncateToDate(from)), nil
}

// toBars converts one chart result into adjusted bars, dropping anything
// dated before from and keeping the last bar when a date repeats.
func toBars(r dto.ChartResult, from time.Time) []entity.PriceBar {
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]

	var adj []*float64
	hasAdj := len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0
	if hasAdj {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	loc := exchangeLocation(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)
	byDate := make(map[time.Time]entity.PriceBar, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		date := entity.TruncateToDate(time.Unix(ts, 0).In(loc))
		if date.Before(from) {
			continue
		}

		b := entity.PriceBar{
			Date:   date,
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: atInt(quote.Volume, i),
		}
		if hasAdj {
			b = adjust(b, at(adj, i))
		}
		byDate[date] = b
	}

	out := make([]entity.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// adjust rescales the raw prices by adjclose/close so that the whole series
// reflects splits and dividends. Without a usable ratio the prices are unknown.
func adjust(b entity.PriceBar, adjClose null.Float) entity.PriceBar {
	if !adjClose.Valid || !b.Close.Valid || b.Close.Float64 == 0 {
		b.Open, b.High, b.Low, b.Close = null.Float{}, null.Float{}, null.Float{}, null.Float{}
		return b
	}
	ratio := adjClose.Float64 / b.Close.Float64
	b.Open = scale(b.Open, ratio)
	b.High = scale(b.High, ratio)
	b.Low = scale(b.Low, ratio)
	b.Close = adjClose
	return b
}

func scale(v null.Float, ratio float64) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(v.Float64 * ratio)
}

// at returns arr[i] as a nullable float; missing and non-finite values are null.
func at(arr []*float64, i int) null.Float {
	if i >= len(arr) || arr[i] == nil {
		return null.Float{}
	}
	v := *arr[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func atInt(arr []*float64, i int) null.Int {
	f := at(arr, i)
	if !f.Valid {
		return null.Int{}
	}
	return null.IntFrom(int64(math.Round(f.Float64)))
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
