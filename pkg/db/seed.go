package db

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"market-gateway/internal/domain"
)

// SeedFile is the top-level YAML structure of an asset-pair seed.
type SeedFile struct {
	AssetPairs []domain.AssetPair `yaml:"asset_pairs"`
}

// LoadSeed reads asset pairs from a YAML file. Missing segments default to Spot.
func LoadSeed(path string) ([]domain.AssetPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}

	for i := range file.AssetPairs {
		p := &file.AssetPairs[i]
		if p.ID == "" {
			return nil, errors.Errorf("seed entry %d has no id", i)
		}
		if p.Segment == "" {
			p.Segment = domain.SegmentSpot
			continue
		}
		seg, ok := domain.ParseMarketSegment(string(p.Segment))
		if !ok {
			return nil, errors.Errorf("asset pair %s: unknown segment %q", p.ID, p.Segment)
		}
		p.Segment = seg
	}
	return file.AssetPairs, nil
}

// SyncSeed upserts pairs in a single transaction.
func (d *Database) SyncSeed(ctx context.Context, pairs []domain.AssetPair) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(upsertAssetPairSQL))
	if err != nil {
		return errors.Wrap(err, "prepare asset pair upsert")
	}
	defer stmt.Close()

	for _, p := range pairs {
		segment := p.Segment
		if segment == "" {
			segment = domain.SegmentSpot
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.BaseAssetID, p.QuotingAssetID, p.Accuracy, p.InvertedAccuracy, boolToInt(p.IsDisabled), string(segment),
		); err != nil {
			return errors.Wrapf(err, "upsert asset pair %s", p.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit seed")
}
