package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalTick single price observation for one side of a pair.
type HistoricalTick struct {
	AssetPairID string
	Side        PriceSide
	Timestamp   time.Time
	Price       decimal.Decimal
}

// Candle converts the tick into a flat candle of the given period.
func (t HistoricalTick) Candle(period PricePeriod) Candle {
	return Candle{
		AssetPairID: t.AssetPairID,
		PriceType:   t.Side.PriceType(),
		Period:      period,
		DateTime:    t.Timestamp,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
	}
}

// Candle OHLC summary of one bucket.
type Candle struct {
	AssetPairID    string          `json:"assetPairId"`
	PriceType      PriceType       `json:"priceType"`
	Period         PricePeriod     `json:"period"`
	DateTime       time.Time       `json:"dateTime"`
	Open           decimal.Decimal `json:"open"`
	High           decimal.Decimal `json:"high"`
	Low            decimal.Decimal `json:"low"`
	Close          decimal.Decimal `json:"close"`
	Volume         decimal.Decimal `json:"volume"`
	OppositeVolume decimal.Decimal `json:"oppositeVolume"`
}

// HistoryRateRecord buy, sell and trade candles for one asset pair. A nil candle means no data in the window.
type HistoryRateRecord struct {
	ID    string  `json:"id"`
	Buy   *Candle `json:"buy,omitempty"`
	Sell  *Candle `json:"sell,omitempty"`
	Trade *Candle `json:"trade,omitempty"`
}

// IsEmpty reports whether the record carries only the pair id.
func (r HistoryRateRecord) IsEmpty() bool {
	return r.Buy == nil && r.Sell == nil && r.Trade == nil
}
