package rates

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-gateway/internal/domain"
)

// Snapshot assembles live rates and the asset-pair dictionary.
type Snapshot struct {
	assets   AssetDirectory
	profiles MarketProfileSource
	candles  CandleHistoryBackend
	logger   *zap.Logger
}

// NewSnapshot creates a snapshot assembler.
func NewSnapshot(assets AssetDirectory, profiles MarketProfileSource, candles CandleHistoryBackend, logger *zap.Logger) *Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshot{assets: assets, profiles: profiles, candles: candles, logger: logger}
}

// Rates returns the live rate of every enabled pair that has a profile entry.
// Entries for unknown or disabled pairs are dropped.
func (s *Snapshot) Rates(ctx context.Context) ([]domain.RateRecord, error) {
	var (
		enabled map[string]struct{}
		entries []domain.MarketProfileEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if enabled, err = s.assets.EnabledIDs(gctx); err != nil {
			return upstream(err, "asset pairs")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if entries, err = s.profiles.AllProfiles(gctx); err != nil {
			return upstream(err, "market profile")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.RateRecord, 0, len(entries))
	for _, e := range entries {
		if _, ok := enabled[e.AssetPair]; ok {
			out = append(out, e.Rate())
		}
	}
	return out, nil
}

// Rate returns the live rate of one pair, or nil when it has no profile entry.
// The pair's enabled flag is not consulted.
func (s *Snapshot) Rate(ctx context.Context, pairID string) (*domain.RateRecord, error) {
	e, err := s.profiles.Profile(ctx, pairID)
	if err != nil {
		return nil, upstream(err, "market profile for %s", pairID)
	}
	if e == nil {
		return nil, nil
	}
	rate := e.Rate()
	return &rate, nil
}

// Dictionary returns enabled asset pairs. For the margin segment only pairs the margin
// candle service has series for are kept; an empty segment means no restriction.
func (s *Snapshot) Dictionary(ctx context.Context, segment domain.MarketSegment) ([]domain.AssetPair, error) {
	pairs, err := s.assets.Enabled(ctx)
	if err != nil {
		return nil, upstream(err, "asset pairs")
	}
	if segment != domain.SegmentMargin {
		return pairs, nil
	}

	configured, err := s.candles.ConfiguredPairs(ctx, segment)
	if err != nil {
		return nil, upstream(err, "%s candle pairs", segment)
	}
	available := make(map[string]struct{}, len(configured))
	for _, id := range configured {
		available[id] = struct{}{}
	}

	out := make([]domain.AssetPair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := available[p.ID]; ok {
			out = append(out, p)
		}
	}
	s.logger.Debug("margin dictionary assembled", zap.Int("enabled", len(pairs)), zap.Int("configured", len(out)))
	return out, nil
}
