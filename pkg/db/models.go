package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"market-gateway/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

const upsertAssetPairSQL = `
	INSERT INTO asset_pairs (id, name, base_asset_id, quoting_asset_id, accuracy, inverted_accuracy, is_disabled, segment)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		base_asset_id = excluded.base_asset_id,
		quoting_asset_id = excluded.quoting_asset_id,
		accuracy = excluded.accuracy,
		inverted_accuracy = excluded.inverted_accuracy,
		is_disabled = excluded.is_disabled,
		segment = excluded.segment
`

// UpsertAssetPair inserts or replaces an asset pair's reference data.
func (d *Database) UpsertAssetPair(ctx context.Context, p domain.AssetPair) error {
	segment := p.Segment
	if segment == "" {
		segment = domain.SegmentSpot
	}
	_, err := d.DB.ExecContext(ctx, d.rebind(upsertAssetPairSQL),
		p.ID, p.Name, p.BaseAssetID, p.QuotingAssetID, p.Accuracy, p.InvertedAccuracy, boolToInt(p.IsDisabled), string(segment))
	return errors.Wrapf(err, "upsert asset pair %s", p.ID)
}

// InsertTick records a historical feed price at millisecond resolution; an existing row for the same
// millisecond is overwritten.
func (d *Database) InsertTick(ctx context.Context, t domain.HistoricalTick) error {
	_, err := d.DB.ExecContext(ctx, d.rebind(`
		INSERT INTO feed_history (asset_pair_id, price_type, ts, price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset_pair_id, price_type, ts) DO UPDATE SET price = excluded.price
	`), t.AssetPairID, t.Side.String(), t.Timestamp.UnixMilli(), t.Price.String())
	return errors.Wrapf(err, "insert tick %s/%s", t.AssetPairID, t.Side)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTickRow(pairID string, side domain.PriceSide, tsMillis int64, price string) (*domain.HistoricalTick, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, errors.Wrapf(err, "parse price %q", price)
	}
	return &domain.HistoricalTick{
		AssetPairID: pairID,
		Side:        side,
		Timestamp:   time.UnixMilli(tsMillis).UTC(),
		Price:       p,
	}, nil
}
