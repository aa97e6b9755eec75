package rates

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-gateway/internal/domain"
)

// Reconciler builds batch history records from the closest ask and bid ticks of each pair.
type Reconciler struct {
	assets      AssetDirectory
	feed        FeedHistoryStore
	concurrency int
	logger      *zap.Logger
}

// NewReconciler creates a reconciler running at most concurrency pairs at once.
func NewReconciler(assets AssetDirectory, feed FeedHistoryStore, concurrency int, logger *zap.Logger) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{assets: assets, feed: feed, concurrency: concurrency, logger: logger}
}

// History returns one record per distinct id, in first-occurrence order.
// The request is rejected as a whole before any lookup when the period is not Day
// or an id is unknown or disabled.
func (r *Reconciler) History(ctx context.Context, ids []string, period domain.PricePeriod, at time.Time) ([]domain.HistoryRateRecord, error) {
	if period != domain.PeriodDay {
		return nil, invalidInput("Sorry, only day candles are available (temporary).")
	}

	enabled, err := r.assets.EnabledIDs(ctx)
	if err != nil {
		return nil, upstream(err, "asset pairs")
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := enabled[id]; !ok {
			r.logger.Debug("history request rejected", zap.String("asset_pair", id))
			return nil, invalidInput("Unknown asset pair id present: %s", id)
		}
		unique = append(unique, id)
	}

	out := make([]domain.HistoryRateRecord, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range unique {
		g.Go(func() error {
			rec, err := r.reconcile(gctx, id, period, at)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reconciler) reconcile(ctx context.Context, id string, period domain.PricePeriod, at time.Time) (domain.HistoryRateRecord, error) {
	var ask, bid *domain.HistoricalTick

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ask, err = r.feed.ClosestTick(gctx, id, domain.SideAsk, at)
		if err != nil {
			return upstream(err, "closest ask tick for %s", id)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bid, err = r.feed.ClosestTick(gctx, id, domain.SideBid, at)
		if err != nil {
			return upstream(err, "closest bid tick for %s", id)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.HistoryRateRecord{}, err
	}

	rec := domain.HistoryRateRecord{ID: id}
	if ask == nil || bid == nil {
		return rec, nil
	}
	sell := ask.Candle(period)
	buy := bid.Candle(period)
	rec.Sell = &sell
	rec.Buy = &buy
	return rec, nil
}
