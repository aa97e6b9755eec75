package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"market-gateway/internal/domain"
)

const assetPairColumns = `id, name, base_asset_id, quoting_asset_id, accuracy, inverted_accuracy, is_disabled, segment`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssetPair(r rowScanner) (domain.AssetPair, error) {
	var (
		p        domain.AssetPair
		disabled int
		segment  string
	)
	if err := r.Scan(&p.ID, &p.Name, &p.BaseAssetID, &p.QuotingAssetID, &p.Accuracy, &p.InvertedAccuracy, &disabled, &segment); err != nil {
		return p, err
	}
	p.IsDisabled = disabled != 0
	p.Segment = domain.MarketSegment(segment)
	return p, nil
}

// ListAssetPairs returns every asset pair, enabled or not, ordered by id.
func (d *Database) ListAssetPairs(ctx context.Context) ([]domain.AssetPair, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+assetPairColumns+` FROM asset_pairs ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query asset pairs")
	}
	defer rows.Close()

	var pairs []domain.AssetPair
	for rows.Next() {
		p, err := scanAssetPair(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan asset pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// GetAssetPair returns ErrNotFound when id is unknown.
func (d *Database) GetAssetPair(ctx context.Context, id string) (*domain.AssetPair, error) {
	row := d.DB.QueryRowContext(ctx, d.rebind(`SELECT `+assetPairColumns+` FROM asset_pairs WHERE id = ?`), id)
	p, err := scanAssetPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get asset pair %s", id)
	}
	return &p, nil
}

// ClosestTick returns the newest tick for the pair and side stamped at or before at.
// Ticks are kept at millisecond resolution, so at is truncated to the millisecond before comparing;
// the returned Timestamp is never after at. It returns ErrNotFound when the feed has nothing that old.
func (d *Database) ClosestTick(ctx context.Context, pairID string, side domain.PriceSide, at time.Time) (*domain.HistoricalTick, error) {
	var (
		ts    int64
		price string
	)
	err := d.DB.QueryRowContext(ctx, d.rebind(`
		SELECT ts, price
		FROM feed_history
		WHERE asset_pair_id = ? AND price_type = ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT 1
	`), pairID, side.String(), at.Truncate(time.Millisecond).UnixMilli()).Scan(&ts, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "closest %s tick for %s", side, pairID)
	}
	return parseTickRow(pairID, side, ts, price)
}

// FeedHistory adapts Database to lookups where a missing tick is a nil result rather than an error.
type FeedHistory struct {
	DB *Database
	// Observe, when set, receives the latency and outcome of each lookup.
	Observe func(elapsed time.Duration, err error)
}

// ClosestTick returns nil when no tick is stamped at or before at.
func (f FeedHistory) ClosestTick(ctx context.Context, pairID string, side domain.PriceSide, at time.Time) (*domain.HistoricalTick, error) {
	start := time.Now()
	tick, err := f.DB.ClosestTick(ctx, pairID, side, at)
	if errors.Is(err, ErrNotFound) {
		tick, err = nil, nil
	}
	if f.Observe != nil {
		f.Observe(time.Since(start), err)
	}
	return tick, err
}
