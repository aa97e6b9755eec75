// Package assets serves asset-pair reference data from a read-through cache.
package assets

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"market-gateway/internal/domain"
	"market-gateway/pkg/cache"
	"market-gateway/pkg/db"
)

// Store is the backing source of asset pairs. GetAssetPair returns db.ErrNotFound for unknown ids.
type Store interface {
	ListAssetPairs(ctx context.Context) ([]domain.AssetPair, error)
	GetAssetPair(ctx context.Context, id string) (*domain.AssetPair, error)
}

// Directory is a read-only view over the asset-pair store, refreshed when older than its TTL.
// It is safe for concurrent use.
type Directory struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	pairs *cache.Sharded[domain.AssetPair]
	group singleflight.Group

	mu       sync.RWMutex
	ids      []string
	loadedAt time.Time
}

// NewDirectory creates an empty directory; call Warm before serving.
func NewDirectory(store Store, ttl time.Duration, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		pairs:  cache.NewSharded[domain.AssetPair](),
	}
}

// Warm loads the store unconditionally.
func (d *Directory) Warm(ctx context.Context) error {
	_, err, _ := d.group.Do("load", func() (any, error) {
		return nil, d.load(ctx)
	})
	return err
}

func (d *Directory) load(ctx context.Context) error {
	list, err := d.store.ListAssetPairs(ctx)
	if err != nil {
		return errors.Wrap(err, "load asset pairs")
	}

	ids := make([]string, 0, len(list))
	for _, p := range list {
		d.pairs.Set(p.ID, p)
		ids = append(ids, p.ID)
	}
	removed := d.pairs.Retain(ids)

	d.mu.Lock()
	d.ids = d.pairs.Keys()
	d.loadedAt = d.now()
	d.mu.Unlock()

	d.logger.Debug("asset pairs loaded", zap.Int("count", len(ids)), zap.Int("removed", removed))
	return nil
}

// refresh reloads when the snapshot is stale. A failed reload keeps serving the previous
// snapshot if there is one.
func (d *Directory) refresh(ctx context.Context) error {
	d.mu.RLock()
	fresh := !d.loadedAt.IsZero() && d.now().Sub(d.loadedAt) < d.ttl
	loaded := !d.loadedAt.IsZero()
	d.mu.RUnlock()
	if fresh {
		return nil
	}

	err := d.Warm(ctx)
	if err != nil && loaded {
		d.logger.Warn("asset pair refresh failed; serving stale snapshot", zap.Error(err))
		return nil
	}
	return err
}

// List returns every asset pair, enabled or not, ordered by id.
func (d *Directory) List(ctx context.Context) ([]domain.AssetPair, error) {
	if err := d.refresh(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	ids := d.ids
	d.mu.RUnlock()

	out := make([]domain.AssetPair, 0, len(ids))
	for _, id := range ids {
		if p, ok := d.pairs.Get(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns the pair with id, or nil when unknown. A pair added to the store since the last
// load is fetched on its own and cached until the next refresh.
func (d *Directory) Get(ctx context.Context, id string) (*domain.AssetPair, error) {
	if err := d.refresh(ctx); err != nil {
		return nil, err
	}
	if p, ok := d.pairs.Get(id); ok {
		return &p, nil
	}

	p, err := d.store.GetAssetPair(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get asset pair %s", id)
	}

	d.pairs.Set(p.ID, *p)
	d.mu.Lock()
	d.ids = d.pairs.Keys()
	d.mu.Unlock()
	d.logger.Debug("asset pair cached on miss", zap.String("asset_pair", p.ID))
	return p, nil
}

// Enabled returns the enabled pairs ordered by id.
func (d *Directory) Enabled(ctx context.Context) ([]domain.AssetPair, error) {
	all, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out, nil
}

// EnabledIDs returns the set of enabled pair ids.
func (d *Directory) EnabledIDs(ctx context.Context) (map[string]struct{}, error) {
	enabled, err := d.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(enabled))
	for _, p := range enabled {
		set[p.ID] = struct{}{}
	}
	return set, nil
}

// Stats exposes cache statistics.
func (d *Directory) Stats() cache.Stats {
	return d.pairs.Stats()
}
