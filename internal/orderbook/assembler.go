// Package orderbook relays cached order books.
package orderbook

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"market-gateway/internal/domain"
)

// Cache holds serialized order books. GetSerialized returns nil data for an absent key.
type Cache interface {
	OrderBookKey(pairID string, isBuy bool) string
	GetSerialized(ctx context.Context, key string) ([]byte, error)
}

// AssetDirectory lists the pairs whose books are served in bulk.
type AssetDirectory interface {
	Enabled(ctx context.Context) ([]domain.AssetPair, error)
}

// Assembler reads both sides of pairs' order books from the cache.
type Assembler struct {
	cache       Cache
	assets      AssetDirectory
	concurrency int
}

// NewAssembler creates an assembler reading at most concurrency pairs at once.
func NewAssembler(cache Cache, assets AssetDirectory, concurrency int) *Assembler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Assembler{cache: cache, assets: assets, concurrency: concurrency}
}

// Get returns the buy then sell book of pairID, skipping sides missing from the cache.
func (a *Assembler) Get(ctx context.Context, pairID string) ([]domain.OrderBook, error) {
	var sides [2]*domain.OrderBook
	g, gctx := errgroup.WithContext(ctx)
	for i, side := range []domain.PriceSide{domain.SideBid, domain.SideAsk} {
		g.Go(func() error {
			book, err := a.read(gctx, pairID, side.IsBuy())
			if err != nil {
				return err
			}
			sides[i] = book
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.OrderBook, 0, 2)
	for _, b := range sides {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

// All returns the books of every enabled pair, grouped by pair in directory order.
func (a *Assembler) All(ctx context.Context) ([]domain.OrderBook, error) {
	pairs, err := a.assets.Enabled(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list asset pairs")
	}

	perPair := make([][]domain.OrderBook, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			books, err := a.Get(gctx, p.ID)
			if err != nil {
				return err
			}
			perPair[i] = books
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.OrderBook
	for _, books := range perPair {
		out = append(out, books...)
	}
	if out == nil {
		out = []domain.OrderBook{}
	}
	return out, nil
}

func (a *Assembler) read(ctx context.Context, pairID string, isBuy bool) (*domain.OrderBook, error) {
	key := a.cache.OrderBookKey(pairID, isBuy)
	data, err := a.cache.GetSerialized(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "read order book %s", key)
	}
	if data == nil {
		return nil, nil
	}

	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, errors.Wrapf(domain.ErrCorruptEntry, "order book %s: %v", key, err)
	}
	return &book, nil
}
