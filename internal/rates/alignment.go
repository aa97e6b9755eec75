package rates

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-gateway/internal/domain"
	"market-gateway/internal/events"
)

// Resolver fetches the single buy, sell and trade candle of a pair's period bucket.
type Resolver struct {
	candles  CandleHistoryBackend
	segment  domain.MarketSegment
	reporter InconsistencyReporter
	logger   *zap.Logger
}

// NewResolver creates a resolver querying the candle service of segment.
// reporter may be nil.
func NewResolver(candles CandleHistoryBackend, segment domain.MarketSegment, reporter InconsistencyReporter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{candles: candles, segment: segment, reporter: reporter, logger: logger}
}

// Window returns the half-open range [from, to) holding the bucket that starts at from.
func Window(period domain.PricePeriod, from time.Time) (time.Time, time.Time) {
	return from, period.WindowEnd(from)
}

var resolvedTypes = [3]domain.PriceType{domain.PriceTypeBid, domain.PriceTypeAsk, domain.PriceTypeTrades}

// Resolve queries bid, ask and trade series concurrently and keeps the first candle of each.
// Missing series leave the matching field nil.
func (r *Resolver) Resolve(ctx context.Context, pairID string, period domain.PricePeriod, at time.Time) (domain.HistoryRateRecord, error) {
	from, to := Window(period, at)

	var series [3][]domain.Candle
	g, gctx := errgroup.WithContext(ctx)
	for i, pt := range resolvedTypes {
		g.Go(func() error {
			got, err := r.candles.QueryCandles(gctx, pairID, pt, period, from, to, r.segment)
			if err != nil {
				return upstream(err, "%s candles for %s", pt, pairID)
			}
			series[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.HistoryRateRecord{}, err
	}

	return domain.HistoryRateRecord{
		ID:    pairID,
		Buy:   r.first(series[0], pairID, domain.PriceTypeBid, period, from, to),
		Sell:  r.first(series[1], pairID, domain.PriceTypeAsk, period, from, to),
		Trade: r.first(series[2], pairID, domain.PriceTypeTrades, period, from, to),
	}, nil
}

func (r *Resolver) first(series []domain.Candle, pairID string, pt domain.PriceType, period domain.PricePeriod, from, to time.Time) *domain.Candle {
	if len(series) == 0 {
		return nil
	}
	if len(series) > 1 {
		r.logger.Warn("candle series holds more than one bucket for window",
			zap.String("asset_pair", pairID),
			zap.String("price_type", string(pt)),
			zap.String("period", string(period)),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Int("count", len(series)))
		if r.reporter != nil {
			r.reporter.ReportInconsistency(events.Inconsistency{
				AssetPairID: pairID,
				PriceType:   pt,
				Period:      period,
				From:        from,
				To:          to,
				Count:       len(series),
			})
		}
	}
	c := series[0]
	return &c
}
