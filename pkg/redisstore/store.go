// Package redisstore reads order books and market profile entries from redis.
package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"market-gateway/internal/domain"
)

// Options configures key naming.
type Options struct {
	// OrderBookKeyPattern contains {pair} and {side}; side is "True" for buy and "False" for sell.
	OrderBookKeyPattern string
	ProfileKey          string
}

// Store is the redis-backed order book cache and market profile source.
type Store struct {
	client     redis.UniversalClient
	keyPattern string
	profileKey string
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return client, nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts Options) *Store {
	if opts.OrderBookKeyPattern == "" {
		opts.OrderBookKeyPattern = "OrderBook_{pair}_{side}"
	}
	if opts.ProfileKey == "" {
		opts.ProfileKey = "MarketProfile"
	}
	return &Store{client: client, keyPattern: opts.OrderBookKeyPattern, profileKey: opts.ProfileKey}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// OrderBookKey returns the cache key of one side of a pair's book.
func (s *Store) OrderBookKey(pairID string, isBuy bool) string {
	side := "False"
	if isBuy {
		side = "True"
	}
	return strings.NewReplacer("{pair}", pairID, "{side}", side).Replace(s.keyPattern)
}

// GetSerialized returns the raw blob stored at key, or nil when the key is absent.
func (s *Store) GetSerialized(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return data, nil
}

// PutOrderBook stores book under its key.
func (s *Store) PutOrderBook(ctx context.Context, book domain.OrderBook) error {
	data, err := json.Marshal(book)
	if err != nil {
		return errors.Wrap(err, "marshal order book")
	}
	key := s.OrderBookKey(book.AssetPair, book.IsBuy)
	return errors.Wrapf(s.client.Set(ctx, key, data, 0).Err(), "set %s", key)
}

// AllProfiles returns every market profile entry ordered by asset pair.
func (s *Store) AllProfiles(ctx context.Context) ([]domain.MarketProfileEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.profileKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "hgetall %s", s.profileKey)
	}

	out := make([]domain.MarketProfileEntry, 0, len(raw))
	for field, value := range raw {
		entry, err := decodeProfile(field, value)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetPair < out[j].AssetPair })
	return out, nil
}

// Profile returns the entry of one pair, or nil when the pair has none.
func (s *Store) Profile(ctx context.Context, pairID string) (*domain.MarketProfileEntry, error) {
	value, err := s.client.HGet(ctx, s.profileKey, pairID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "hget %s %s", s.profileKey, pairID)
	}
	entry, err := decodeProfile(pairID, value)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PutProfile stores entry in the profile hash.
func (s *Store) PutProfile(ctx context.Context, entry domain.MarketProfileEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal profile entry")
	}
	return errors.Wrapf(s.client.HSet(ctx, s.profileKey, entry.AssetPair, data).Err(), "hset %s", s.profileKey)
}

func decodeProfile(field, value string) (domain.MarketProfileEntry, error) {
	var entry domain.MarketProfileEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return entry, errors.Wrapf(domain.ErrCorruptEntry, "profile %s: %v", field, err)
	}
	if entry.AssetPair == "" {
		entry.AssetPair = field
	}
	return entry, nil
}
