package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-gateway/internal/assets"
	"market-gateway/internal/domain"
	"market-gateway/internal/events"
	"market-gateway/internal/monitor"
	"market-gateway/internal/orderbook"
	"market-gateway/internal/rates"
	"market-gateway/pkg/candles"
	"market-gateway/pkg/db"
	"market-gateway/pkg/redisstore"
)

var (
	day       = time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC)
	bookStamp = time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC)
)

// candleService serves one candle per series and a fixed list of margin pairs.
func candleService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/availableAssetPairs") {
			_, _ = w.Write([]byte(`["ETHUSD","LTCUSD"]`))
			return
		}
		_, _ = w.Write([]byte(`{"history":[{"dateTime":"2021-03-10T12:30:00Z","open":1,"close":2,"high":3,"low":0.5,"tradingVolume":7,"tradingOppositeVolume":9}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAPIServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.ApplyMigrations(database))
	require.NoError(t, database.SyncSeed(ctx, []domain.AssetPair{
		{ID: "BTCUSD", Name: "BTC/USD", BaseAssetID: "BTC", QuotingAssetID: "USD", Accuracy: 3, InvertedAccuracy: 8, Segment: domain.SegmentSpot},
		{ID: "ETHUSD", Name: "ETH/USD", BaseAssetID: "ETH", QuotingAssetID: "USD", Accuracy: 4, InvertedAccuracy: 6, Segment: domain.SegmentMargin},
		{ID: "XRPUSD", Name: "XRP/USD", BaseAssetID: "XRP", QuotingAssetID: "USD", Accuracy: 5, InvertedAccuracy: 5, IsDisabled: true, Segment: domain.SegmentSpot},
	}))
	require.NoError(t, database.InsertTick(ctx, domain.HistoricalTick{AssetPairID: "BTCUSD", Side: domain.SideAsk, Timestamp: day.Add(-14 * time.Hour), Price: decimal.RequireFromString("50010.5")}))
	require.NoError(t, database.InsertTick(ctx, domain.HistoricalTick{AssetPairID: "BTCUSD", Side: domain.SideBid, Timestamp: day.Add(-13 * time.Hour), Price: decimal.RequireFromString("50000.25")}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.New(client, redisstore.Options{})
	for _, e := range []domain.MarketProfileEntry{
		{AssetPair: "BTCUSD", BidPrice: decimal.NewFromInt(50000), AskPrice: decimal.NewFromInt(50010), BidPriceTimestamp: bookStamp, AskPriceTimestamp: bookStamp},
		{AssetPair: "XRPUSD", BidPrice: decimal.RequireFromString("0.5"), AskPrice: decimal.RequireFromString("0.51"), BidPriceTimestamp: bookStamp, AskPriceTimestamp: bookStamp},
	} {
		require.NoError(t, store.PutProfile(ctx, e))
	}
	for _, b := range []domain.OrderBook{
		{AssetPair: "BTCUSD", IsBuy: false, Timestamp: bookStamp, Prices: []domain.VolumePrice{{Volume: decimal.NewFromInt(1), Price: decimal.NewFromInt(50010)}}},
		{AssetPair: "BTCUSD", IsBuy: true, Timestamp: bookStamp, Prices: []domain.VolumePrice{{Volume: decimal.NewFromInt(2), Price: decimal.NewFromInt(50000)}}},
	} {
		require.NoError(t, store.PutOrderBook(ctx, b))
	}

	svc := candleService(t)
	candleClient := candles.NewClient(svc.URL)
	provider := candles.NewProvider(map[domain.MarketSegment]*candles.Client{
		domain.SegmentSpot:   candleClient,
		domain.SegmentMargin: candleClient,
	})

	bus := events.NewBus()
	metrics := monitor.NewMetrics()
	mon := &monitor.Monitor{Bus: bus, Metrics: metrics, Logger: logger}

	directory := assets.NewDirectory(database, time.Minute, logger)
	require.NoError(t, directory.Warm(ctx))

	server := NewServer(&Server{
		Bus:        bus,
		Metrics:    metrics,
		Reconciler: rates.NewReconciler(directory, db.FeedHistory{DB: database}, 4, logger),
		Resolver:   rates.NewResolver(provider, domain.SegmentSpot, mon, logger),
		Snapshot:   rates.NewSnapshot(directory, store, provider, logger),
		OrderBooks: orderbook.NewAssembler(store, directory, 4),
		Directory:  directory,
		DB:         database,
		Cache:      store,
		Logger:     logger,
	}, Options{RequestTimeout: 5 * time.Second})

	httpServer := httptest.NewServer(server.Router)
	t.Cleanup(httpServer.Close)
	return httpServer, server
}

func doJSONRequest(t *testing.T, client *http.Client, method, url string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	switch p := payload.(type) {
	case nil:
	case string:
		buf.WriteString(p)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestHealth(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/health", nil, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, resp.Checks)
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp2, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func TestGetRatesFiltersDisabledPairs(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	var got []domain.RateRecord
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/AssetPairs/rate", nil, &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSD", got[0].ID)
	assert.True(t, got[0].Bid.Equal(decimal.NewFromInt(50000)))
	assert.True(t, got[0].Ask.Equal(decimal.NewFromInt(50010)))
}

func TestGetRate(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	t.Run("disabled pair is still served", func(t *testing.T) {
		var got *domain.RateRecord
		status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/AssetPairs/rate/XRPUSD", nil, &got)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, got)
		assert.Equal(t, "XRPUSD", got.ID)
	})

	t.Run("absent pair answers null", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/AssetPairs/rate/NOPE")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "null", strings.TrimSpace(string(body)))
	})
}

func TestGetDictionary(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	ids := func(pairs []domain.AssetPair) []string {
		out := make([]string, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "default is spot", path: "/api/AssetPairs/dictionary", want: []string{"BTCUSD", "ETHUSD"}},
		{name: "spot", path: "/api/AssetPairs/dictionary/Spot", want: []string{"BTCUSD", "ETHUSD"}},
		{name: "margin keeps configured pairs", path: "/api/AssetPairs/dictionary/mt", want: []string{"ETHUSD"}},
		{name: "margin alias", path: "/api/AssetPairs/dictionary/margin", want: []string{"ETHUSD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []domain.AssetPair
			status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+tt.path, nil, &got)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	t.Run("unknown market", func(t *testing.T) {
		var resp errorBody
		status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/AssetPairs/dictionary/futures", nil, &resp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "InvalidInput", resp.Code)
	})
}

func TestHistoryRates(t *testing.T) {
	ts, _ := newTestAPIServer(t)
	url := ts.URL + "/api/AssetPairs/rate/history"

	t.Run("reconciles feed ticks per pair", func(t *testing.T) {
		var got []domain.HistoryRateRecord
		status := doJSONRequest(t, ts.Client(), http.MethodPost, url, map[string]any{
			"assetPairIds": []string{"BTCUSD", "ETHUSD", "BTCUSD"},
			"period":       "Day",
			"dateTime":     day,
		}, &got)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, got, 2)

		assert.Equal(t, "BTCUSD", got[0].ID)
		require.NotNil(t, got[0].Buy)
		require.NotNil(t, got[0].Sell)
		assert.Nil(t, got[0].Trade)
		assert.True(t, got[0].Buy.Close.Equal(decimal.RequireFromString("50000.25")))
		assert.True(t, got[0].Sell.Close.Equal(decimal.RequireFromString("50010.5")))

		assert.Equal(t, "ETHUSD", got[1].ID)
		assert.True(t, got[1].IsEmpty())
	})

	t.Run("empty id list", func(t *testing.T) {
		var got []domain.HistoryRateRecord
		status := doJSONRequest(t, ts.Client(), http.MethodPost, url, map[string]any{
			"assetPairIds": []string{},
			"period":       "Day",
			"dateTime":     day,
		}, &got)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, got)
	})

	rejected := []struct {
		name    string
		payload any
		message string
	}{
		{
			name:    "disabled pair",
			payload: map[string]any{"assetPairIds": []string{"BTCUSD", "XRPUSD"}, "period": "Day", "dateTime": day},
			message: "Unknown asset pair id present: XRPUSD",
		},
		{
			name:    "non-day period",
			payload: map[string]any{"assetPairIds": []string{"BTCUSD"}, "period": "Hour", "dateTime": day},
			message: "Sorry, only day candles are available (temporary).",
		},
		{
			name:    "unknown period",
			payload: map[string]any{"assetPairIds": []string{"BTCUSD"}, "period": "Week", "dateTime": day},
		},
		{
			name:    "malformed body",
			payload: `{"assetPairIds": [`,
		},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorBody
			status := doJSONRequest(t, ts.Client(), http.MethodPost, url, tt.payload, &resp)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "InvalidInput", resp.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
		})
	}
}

func TestHistoryRateSinglePair(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	var got domain.HistoryRateRecord
	status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/AssetPairs/rate/history/BTCUSD", map[string]any{
		"period":   "Minute",
		"dateTime": day.Add(12*time.Hour + 30*time.Minute),
	}, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "BTCUSD", got.ID)
	require.NotNil(t, got.Buy)
	require.NotNil(t, got.Sell)
	require.NotNil(t, got.Trade)
	assert.Equal(t, domain.PriceTypeBid, got.Buy.PriceType)
	assert.Equal(t, domain.PriceTypeAsk, got.Sell.PriceType)
	assert.Equal(t, domain.PriceTypeTrades, got.Trade.PriceType)
	assert.True(t, got.Trade.Volume.Equal(decimal.NewFromInt(7)))

	var resp errorBody
	status = doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/AssetPairs/rate/history/BTCUSD", map[string]any{
		"dateTime": day,
	}, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidInput", resp.Code)
}

func TestOrderBooks(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	var one []domain.OrderBook
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/OrderBook/BTCUSD", nil, &one)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, one, 2)
	assert.True(t, one[0].IsBuy)
	assert.False(t, one[1].IsBuy)

	var all []domain.OrderBook
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/OrderBook", nil, &all)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, all, 2)

	var none []domain.OrderBook
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/OrderBook/ETHUSD", nil, &none)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, none)
}

func TestMetricsEndpoints(t *testing.T) {
	ts, _ := newTestAPIServer(t)
	_ = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/health", nil, nil)

	// Counters are bumped after the response is written, so poll until the first request lands.
	require.Eventually(t, func() bool {
		var resp struct {
			Metrics monitor.Snapshot `json:"metrics"`
		}
		status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/metrics", nil, &resp)
		return status == http.StatusOK && resp.Metrics.APIRequests >= 1
	}, 2*time.Second, 10*time.Millisecond)

	res, err := ts.Client().Get(ts.URL + "/api/metrics/prometheus")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gateway_api_requests_total")
	assert.Contains(t, string(body), "gateway_asset_pairs_cached 3")
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestAPIServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/AssetPairs/rate", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateStream(t *testing.T) {
	ts, server := newTestAPIServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunRateBroadcast(ctx, 20*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/AssetPairs/rate/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg events.RateSnapshot
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Rates, 1)
	assert.Equal(t, "BTCUSD", msg.Rates[0].ID)
}
