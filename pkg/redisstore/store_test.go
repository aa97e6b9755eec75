package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, Options{}), mr
}

func TestOrderBookKey(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, "OrderBook_BTCUSD_True", s.OrderBookKey("BTCUSD", true))
	assert.Equal(t, "OrderBook_BTCUSD_False", s.OrderBookKey("BTCUSD", false))

	custom := New(nil, Options{OrderBookKeyPattern: "ob:{side}:{pair}"})
	assert.Equal(t, "ob:True:ETHUSD", custom.OrderBookKey("ETHUSD", true))
}

func TestGetSerialized(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	data, err := s.GetSerialized(ctx, "OrderBook_BTCUSD_True")
	require.NoError(t, err)
	assert.Nil(t, data)

	book := domain.OrderBook{
		AssetPair: "BTCUSD",
		IsBuy:     true,
		Timestamp: time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC),
		Prices:    []domain.VolumePrice{{Volume: decimal.NewFromInt(2), Price: decimal.NewFromInt(50000)}},
	}
	require.NoError(t, s.PutOrderBook(ctx, book))
	assert.True(t, mr.Exists("OrderBook_BTCUSD_True"))

	data, err = s.GetSerialized(ctx, "OrderBook_BTCUSD_True")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"assetPair":"BTCUSD"`)

	mr.SetError("server down")
	_, err = s.GetSerialized(ctx, "OrderBook_BTCUSD_True")
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	all, err := s.AllProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, e := range []domain.MarketProfileEntry{
		{AssetPair: "ETHUSD", BidPrice: decimal.RequireFromString("1800.5"), AskPrice: decimal.RequireFromString("1801")},
		{AssetPair: "BTCUSD", BidPrice: decimal.NewFromInt(50000), AskPrice: decimal.NewFromInt(50010)},
	} {
		require.NoError(t, s.PutProfile(ctx, e))
	}

	all, err = s.AllProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSD", all[0].AssetPair)
	assert.Equal(t, "ETHUSD", all[1].AssetPair)

	one, err := s.Profile(ctx, "ETHUSD")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.True(t, one.BidPrice.Equal(decimal.RequireFromString("1800.5")))

	missing, err := s.Profile(ctx, "XRPUSD")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Entries written by other producers use number prices and may omit the pair.
	mr.HSet("MarketProfile", "LTCUSD", `{"BidPrice":90.1,"AskPrice":90.2}`)
	one, err = s.Profile(ctx, "LTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "LTCUSD", one.AssetPair)
	assert.True(t, one.AskPrice.Equal(decimal.RequireFromString("90.2")))

	mr.HSet("MarketProfile", "BAD", `not json`)
	_, err = s.Profile(ctx, "BAD")
	assert.ErrorIs(t, err, domain.ErrCorruptEntry)
	_, err = s.AllProfiles(ctx)
	assert.ErrorIs(t, err, domain.ErrCorruptEntry)
}

func TestPing(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
