package candles

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"market-gateway/internal/domain"
)

// ErrNotConfigured is returned for a segment without a candle service URL.
var ErrNotConfigured = errors.New("candle service not configured for segment")

// Provider routes candle queries to the service of each market segment.
type Provider struct {
	clients map[domain.MarketSegment]*Client
}

// NewProvider creates a provider from per-segment clients; nil clients are skipped.
func NewProvider(clients map[domain.MarketSegment]*Client) *Provider {
	p := &Provider{clients: make(map[domain.MarketSegment]*Client, len(clients))}
	for seg, c := range clients {
		if c != nil {
			p.clients[seg] = c
		}
	}
	return p
}

// Get returns the client for segment.
func (p *Provider) Get(segment domain.MarketSegment) (*Client, error) {
	if !segment.IsValid() {
		return nil, errors.Errorf("unknown market segment %q", segment)
	}
	c, ok := p.clients[segment]
	if !ok {
		return nil, errors.Wrapf(ErrNotConfigured, "%s", segment)
	}
	return c, nil
}

// Segments lists the configured segments.
func (p *Provider) Segments() []domain.MarketSegment {
	out := make([]domain.MarketSegment, 0, len(p.clients))
	for _, seg := range []domain.MarketSegment{domain.SegmentSpot, domain.SegmentMargin} {
		if _, ok := p.clients[seg]; ok {
			out = append(out, seg)
		}
	}
	return out
}

// QueryCandles fetches candles from the segment's service.
func (p *Provider) QueryCandles(ctx context.Context, pairID string, priceType domain.PriceType, period domain.PricePeriod, from, to time.Time, segment domain.MarketSegment) ([]domain.Candle, error) {
	c, err := p.Get(segment)
	if err != nil {
		return nil, err
	}
	return c.QueryCandles(ctx, pairID, priceType, period, from, to)
}

// ConfiguredPairs lists the pairs with series in the segment's service.
func (p *Provider) ConfiguredPairs(ctx context.Context, segment domain.MarketSegment) ([]string, error) {
	c, err := p.Get(segment)
	if err != nil {
		return nil, err
	}
	return c.AvailablePairs(ctx)
}
