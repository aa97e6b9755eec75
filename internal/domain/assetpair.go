// Package domain defines the market data types shared by the gateway.
package domain

import "strings"

// MarketSegment trading venue category that scopes asset pairs and candle series.
type MarketSegment string

const (
	// SegmentSpot spot trading.
	SegmentSpot MarketSegment = "Spot"
	// SegmentMargin margin trading.
	SegmentMargin MarketSegment = "Mt"
)

// String returns the string representation.
func (m MarketSegment) String() string {
	return string(m)
}

// IsValid checks if the MarketSegment value is valid.
func (m MarketSegment) IsValid() bool {
	return m == SegmentSpot || m == SegmentMargin
}

// ParseMarketSegment accepts "Spot", "Mt" and the "margin" alias, case-insensitively.
func ParseMarketSegment(s string) (MarketSegment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot":
		return SegmentSpot, true
	case "mt", "margin":
		return SegmentMargin, true
	default:
		return "", false
	}
}

// AssetPair reference data for a tradable instrument.
type AssetPair struct {
	ID               string        `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	BaseAssetID      string        `json:"baseAssetId" yaml:"base_asset_id"`
	QuotingAssetID   string        `json:"quotingAssetId" yaml:"quoting_asset_id"`
	Accuracy         int           `json:"accuracy" yaml:"accuracy"`
	InvertedAccuracy int           `json:"invertedAccuracy" yaml:"inverted_accuracy"`
	IsDisabled       bool          `json:"-" yaml:"is_disabled"`
	Segment          MarketSegment `json:"-" yaml:"segment"`
}

// Enabled reports whether the pair may be exposed to callers.
func (p AssetPair) Enabled() bool {
	return !p.IsDisabled
}
