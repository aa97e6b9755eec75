package rates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market-gateway/internal/domain"
	"market-gateway/internal/events"
)

var errBoom = errors.New("boom")

type fakeAssets struct {
	pairs []domain.AssetPair
	err   error
}

func (f *fakeAssets) Enabled(ctx context.Context) ([]domain.AssetPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.AssetPair
	for _, p := range f.pairs {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAssets) EnabledIDs(ctx context.Context) (map[string]struct{}, error) {
	enabled, err := f.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(enabled))
	for _, p := range enabled {
		set[p.ID] = struct{}{}
	}
	return set, nil
}

type tickKey struct {
	pair string
	side domain.PriceSide
}

type fakeFeed struct {
	mu    sync.Mutex
	ticks map[tickKey][]domain.HistoricalTick
	fail  string
	calls int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ticks: make(map[tickKey][]domain.HistoricalTick)}
}

func (f *fakeFeed) add(pair string, side domain.PriceSide, at time.Time, price string) {
	k := tickKey{pair, side}
	f.ticks[k] = append(f.ticks[k], domain.HistoricalTick{
		AssetPairID: pair,
		Side:        side,
		Timestamp:   at,
		Price:       decimal.RequireFromString(price),
	})
}

func (f *fakeFeed) ClosestTick(ctx context.Context, pairID string, side domain.PriceSide, at time.Time) (*domain.HistoricalTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if pairID == f.fail {
		return nil, errBoom
	}
	var best *domain.HistoricalTick
	for _, t := range f.ticks[tickKey{pairID, side}] {
		if t.Timestamp.After(at) {
			continue
		}
		if best == nil || t.Timestamp.After(best.Timestamp) {
			tick := t
			best = &tick
		}
	}
	return best, nil
}

type candleQuery struct {
	Pair      string
	PriceType domain.PriceType
	Period    domain.PricePeriod
	From, To  time.Time
	Segment   domain.MarketSegment
}

type fakeCandles struct {
	mu         sync.Mutex
	series     map[domain.PriceType][]domain.Candle
	queries    []candleQuery
	configured map[domain.MarketSegment][]string
	err        error
}

func (f *fakeCandles) QueryCandles(ctx context.Context, pairID string, priceType domain.PriceType, period domain.PricePeriod, from, to time.Time, segment domain.MarketSegment) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, candleQuery{pairID, priceType, period, from, to, segment})
	if f.err != nil {
		return nil, f.err
	}
	return f.series[priceType], nil
}

func (f *fakeCandles) ConfiguredPairs(ctx context.Context, segment domain.MarketSegment) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.configured[segment], nil
}

func (f *fakeCandles) sortedQueries() []candleQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]candleQuery(nil), f.queries...)
	sort.Slice(out, func(i, j int) bool { return out[i].PriceType < out[j].PriceType })
	return out
}

type fakeProfiles struct {
	entries []domain.MarketProfileEntry
	err     error
}

func (f *fakeProfiles) AllProfiles(ctx context.Context) ([]domain.MarketProfileEntry, error) {
	return f.entries, f.err
}

func (f *fakeProfiles) Profile(ctx context.Context, pairID string) (*domain.MarketProfileEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.entries {
		if e.AssetPair == pairID {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	events []events.Inconsistency
}

func (r *recordingReporter) ReportInconsistency(ev events.Inconsistency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}
