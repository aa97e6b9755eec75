// Package rates assembles current and historical rate responses from the gateway's backing stores.
package rates

import (
	"context"
	"time"

	"market-gateway/internal/domain"
	"market-gateway/internal/events"
)

// AssetDirectory is the read-only asset-pair reference data.
type AssetDirectory interface {
	Enabled(ctx context.Context) ([]domain.AssetPair, error)
	EnabledIDs(ctx context.Context) (map[string]struct{}, error)
}

// FeedHistoryStore finds historical ticks. A nil tick with a nil error means nothing at or before at.
type FeedHistoryStore interface {
	ClosestTick(ctx context.Context, pairID string, side domain.PriceSide, at time.Time) (*domain.HistoricalTick, error)
}

// CandleHistoryBackend queries candle series per market segment.
type CandleHistoryBackend interface {
	QueryCandles(ctx context.Context, pairID string, priceType domain.PriceType, period domain.PricePeriod, from, to time.Time, segment domain.MarketSegment) ([]domain.Candle, error)
	ConfiguredPairs(ctx context.Context, segment domain.MarketSegment) ([]string, error)
}

// MarketProfileSource serves live best bid/ask entries. A nil entry with a nil error means absent.
type MarketProfileSource interface {
	AllProfiles(ctx context.Context) ([]domain.MarketProfileEntry, error)
	Profile(ctx context.Context, pairID string) (*domain.MarketProfileEntry, error)
}

// InconsistencyReporter is told about candle series that broke their single-bucket contract.
type InconsistencyReporter interface {
	ReportInconsistency(ev events.Inconsistency)
}
