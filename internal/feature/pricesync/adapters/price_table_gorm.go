// Package adapters provides storage implementations for the pricesync feature.
package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_sync/internal/feature/pricesync/domain/entity"
	"stock_sync/internal/feature/pricesync/usecase"
)

// insertBatchSize bounds the number of rows sent per INSERT statement.
const insertBatchSize = 500

// watermarkLayouts are the textual forms drivers use when MAX(Date) comes back
// as a string instead of a time value.
var watermarkLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// PriceBarModel is the row layout of every per-ticker table. Column names are
// capitalized to match tables already in production.
type PriceBarModel struct {
	Date   time.Time  `gorm:"column:Date;type:date;not null"`
	Open   null.Float `gorm:"column:Open"`
	High   null.Float `gorm:"column:High"`
	Low    null.Float `gorm:"column:Low"`
	Close  null.Float `gorm:"column:Close"`
	Volume null.Int   `gorm:"column:Volume"`
}

// priceTable stores each ticker's bars in its own table named after the
// sanitized ticker.
type priceTable struct {
	db *gorm.DB
}

var (
	_ usecase.WatermarkStore = (*priceTable)(nil)
	_ usecase.PriceSink      = (*priceTable)(nil)
)

// NewPriceTable creates a repository over per-ticker price tables.
func NewPriceTable(db *gorm.DB) *priceTable {
	return &priceTable{db: db}
}

// Watermark returns the latest stored date for ticker. A missing table or an
// empty one yields an unset watermark.
func (r *priceTable) Watermark(ctx context.Context, ticker entity.Ticker) (entity.Watermark, error) {
	db := r.db.WithContext(ctx)
	table := ticker.TableName()
	if !db.Migrator().HasTable(table) {
		return entity.Watermark{}, nil
	}

	var raw any
	row := db.Table(table).Select("MAX(?)", clause.Column{Name: "Date"}).Row()
	if err := row.Scan(&raw); err != nil {
		return entity.Watermark{}, fmt.Errorf("query max date of %s: %w", table, err)
	}
	if raw == nil {
		return entity.Watermark{}, nil
	}

	d, err := parseWatermark(raw)
	if err != nil {
		return entity.Watermark{}, fmt.Errorf("%w: table %s: %v", usecase.ErrBadWatermark, table, err)
	}
	return entity.Watermark{Date: d, Valid: true}, nil
}

// Append writes bars to the ticker's table, creating the table first when it
// does not exist. Rows are inserted in a single transaction.
func (r *priceTable) Append(ctx context.Context, ticker entity.Ticker, bars []entity.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	table := ticker.TableName()

	// DDL stays outside the transaction: MySQL commits implicitly on CREATE TABLE.
	if !db.Migrator().HasTable(table) {
		if err := db.Table(table).Migrator().CreateTable(&PriceBarModel{}); err != nil {
			return 0, fmt.Errorf("create table %s: %w", table, err)
		}
	}

	ms := make([]PriceBarModel, 0, len(bars))
	for _, b := range bars {
		ms = append(ms, toModel(b))
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).CreateInBatches(&ms, insertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return len(ms), nil
}

func toModel(b entity.PriceBar) PriceBarModel {
	return PriceBarModel{
		Date:   entity.TruncateToDate(b.Date),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

func parseWatermark(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return entity.TruncateToDate(v), nil
	case []byte:
		return parseWatermarkString(string(v))
	case string:
		return parseWatermarkString(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", raw)
	}
}

func parseWatermarkString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range watermarkLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.TruncateToDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %q", s)
}
