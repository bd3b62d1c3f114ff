package listing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"stock_sync/internal/feature/pricesync/usecase"
)

const trailerPrefix = "File Creation Time"

// SourceConfig describes one delimited listing file.
type SourceConfig struct {
	Name         string
	URL          string
	Delimiter    rune
	SymbolColumn string
	// ETFOnly keeps only rows whose "ETF" column is "Y".
	ETFOnly bool
}

// Source downloads a delimited listing file and extracts its symbol column.
// Rows flagged as test issues are skipped.
type Source struct {
	cfg    SourceConfig
	client *http.Client
}

var _ usecase.ListingSource = (*Source)(nil)

// NewSource creates a listing source.
func NewSource(cfg SourceConfig, client *http.Client) *Source {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Source{cfg: cfg, client: client}
}

// NewSP500Source reads S&P 500 constituents from a comma separated file.
func NewSP500Source(url string, client *http.Client) *Source {
	return NewSource(SourceConfig{Name: "sp500", URL: url, SymbolColumn: "Symbol"}, client)
}

// NewDowSource reads Dow Jones Industrial Average constituents from a comma separated file.
func NewDowSource(url string, client *http.Client) *Source {
	return NewSource(SourceConfig{Name: "dow", URL: url, SymbolColumn: "Symbol"}, client)
}

// NewNasdaqSource reads the NASDAQ Trader nasdaqlisted.txt directory.
func NewNasdaqSource(url string, client *http.Client) *Source {
	return NewSource(SourceConfig{Name: "nasdaq", URL: url, Delimiter: '|', SymbolColumn: "Symbol"}, client)
}

// NewETFSource reads ETFs from the NASDAQ Trader otherlisted.txt directory.
func NewETFSource(url string, client *http.Client) *Source {
	return NewSource(SourceConfig{Name: "etf", URL: url, Delimiter: '|', SymbolColumn: "ACT Symbol", ETFOnly: true}, client)
}

// Name returns the source name used in logs.
func (s *Source) Name() string {
	return s.cfg.Name
}

// ListTickers downloads the listing and returns its symbols in file order.
func (s *Source) ListTickers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: http %d", s.cfg.Name, res.StatusCode)
	}
	return s.parse(res.Body)
}

func (s *Source) parse(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = s.cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", s.cfg.Name, err)
	}
	idx := columnIndex(header)
	symCol, ok := idx[s.cfg.SymbolColumn]
	if !ok {
		return nil, fmt.Errorf("%s: column %q not found", s.cfg.Name, s.cfg.SymbolColumn)
	}
	etfCol, hasETF := idx["ETF"]
	if s.cfg.ETFOnly && !hasETF {
		return nil, fmt.Errorf("%s: column %q not found", s.cfg.Name, "ETF")
	}
	testCol, hasTest := idx["Test Issue"]

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.cfg.Name, err)
		}
		if len(rec) > 0 && strings.HasPrefix(rec[0], trailerPrefix) {
			continue
		}
		if symCol >= len(rec) {
			continue
		}
		if hasTest && testCol < len(rec) && rec[testCol] == "Y" {
			continue
		}
		if s.cfg.ETFOnly && (etfCol >= len(rec) || rec[etfCol] != "Y") {
			continue
		}
		if sym := strings.TrimSpace(rec[symCol]); sym != "" {
			out = append(out, sym)
		}
	}
	return out, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// strip a UTF-8 BOM on the first column
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return idx
}

// StaticSource returns a fixed list of tickers.
type StaticSource struct {
	tickers []string
}

var _ usecase.ListingSource = (*StaticSource)(nil)

// NewStaticSource creates a source over a fixed list.
func NewStaticSource(tickers []string) *StaticSource {
	return &StaticSource{tickers: tickers}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) ListTickers(context.Context) ([]string, error) {
	return append([]string(nil), s.tickers...), nil
}

// NewSources builds the configured listing sources. A fixed ticker list, when
// present, is the only source.
func NewSources(cfg Config, client *http.Client) []usecase.ListingSource {
	if len(cfg.Tickers) > 0 {
		return []usecase.ListingSource{NewStaticSource(cfg.Tickers)}
	}
	var out []usecase.ListingSource
	if cfg.SP500URL != "" {
		out = append(out, NewSP500Source(cfg.SP500URL, client))
	}
	if cfg.DowURL != "" {
		out = append(out, NewDowSource(cfg.DowURL, client))
	}
	if cfg.NasdaqURL != "" {
		out = append(out, NewNasdaqSource(cfg.NasdaqURL, client))
	}
	if cfg.OtherURL != "" {
		out = append(out, NewETFSource(cfg.OtherURL, client))
	}
	return out
}
