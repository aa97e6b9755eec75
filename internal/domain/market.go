package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MarketProfileEntry live best bid/ask for a pair as published by the market profile feed.
type MarketProfileEntry struct {
	AssetPair         string          `json:"AssetPair"`
	BidPrice          decimal.Decimal `json:"BidPrice"`
	AskPrice          decimal.Decimal `json:"AskPrice"`
	BidPriceTimestamp time.Time       `json:"BidPriceTimestamp"`
	AskPriceTimestamp time.Time       `json:"AskPriceTimestamp"`
}

// Rate converts the entry into its response shape.
func (e MarketProfileEntry) Rate() RateRecord {
	return RateRecord{
		ID:  e.AssetPair,
		Bid: e.BidPrice,
		Ask: e.AskPrice,
	}
}

// RateRecord current bid/ask for a pair.
type RateRecord struct {
	ID  string          `json:"id"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// VolumePrice one level of an order book.
type VolumePrice struct {
	Volume decimal.Decimal `json:"volume"`
	Price  decimal.Decimal `json:"price"`
}

// OrderBook one side of a pair's book as relayed from the cache.
type OrderBook struct {
	AssetPair string        `json:"assetPair"`
	IsBuy     bool          `json:"isBuy"`
	Timestamp time.Time     `json:"timestamp"`
	Prices    []VolumePrice `json:"prices"`
}

// ErrCorruptEntry marks a cached blob that exists but cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt cache entry")
