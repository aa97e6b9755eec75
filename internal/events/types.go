package events

import (
	"time"

	"market-gateway/internal/domain"
)

// Event enumerates high-level topics inside the gateway.
type Event string

const (
	EventRateSnapshot         Event = "rate_snapshot"
	EventBackendInconsistency Event = "backend_inconsistency"
	EventUpstreamFailure      Event = "upstream_failure"
)

// RateSnapshot is published on EventRateSnapshot with the enabled-pair rates at At.
type RateSnapshot struct {
	At    time.Time           `json:"at"`
	Rates []domain.RateRecord `json:"rates"`
}

// Inconsistency is published on EventBackendInconsistency when a candle series holds
// more buckets than the query window allows.
type Inconsistency struct {
	AssetPairID string             `json:"assetPairId"`
	PriceType   domain.PriceType   `json:"priceType"`
	Period      domain.PricePeriod `json:"period"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Count       int                `json:"count"`
}

// UpstreamFailure is published on EventUpstreamFailure when a collaborator call fails.
type UpstreamFailure struct {
	Source string    `json:"source"`
	Err    string    `json:"error"`
	At     time.Time `json:"at"`
}
