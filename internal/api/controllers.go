package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"market-gateway/internal/domain"
	"market-gateway/internal/monitor"
	"market-gateway/internal/rates"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type historyRatesRequest struct {
	AssetPairIDs []string           `json:"assetPairIds"`
	Period       domain.PricePeriod `json:"period"`
	DateTime     time.Time          `json:"dateTime"`
}

type historyRateRequest struct {
	Period   domain.PricePeriod `json:"period"`
	DateTime time.Time          `json:"dateTime"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"code": code, "message": msg})
}

// respondFailure maps a core error onto the HTTP error body.
func (s *Server) respondFailure(c *gin.Context, err error) {
	var re *rates.Error
	if errors.As(err, &re) && re.Code == rates.CodeInvalidInput {
		respondError(c, http.StatusBadRequest, string(re.Code), re.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(c.Request.Context().Err(), context.DeadlineExceeded) {
		s.Logger.Warn("request timeout",
			zap.String("request_id", c.GetString("RequestID")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusRequestTimeout, "RequestTimeout", "request took too long to process")
		return
	}
	s.Logger.Error("request failed",
		zap.String("request_id", c.GetString("RequestID")),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, "InternalError", "internal server error")
}

func (s *Server) getRates(c *gin.Context) {
	out, err := s.Snapshot.Rates(c.Request.Context())
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	if out == nil {
		out = []domain.RateRecord{}
	}
	c.JSON(http.StatusOK, out)
}

// getRate answers with a null body when the pair has no profile entry.
func (s *Server) getRate(c *gin.Context) {
	rate, err := s.Snapshot.Rate(c.Request.Context(), c.Param("assetPairId"))
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

func (s *Server) getDictionary(c *gin.Context) {
	segment := domain.SegmentSpot
	if market := c.Param("market"); market != "" {
		parsed, ok := domain.ParseMarketSegment(market)
		if !ok {
			respondError(c, http.StatusBadRequest, string(rates.CodeInvalidInput), fmt.Sprintf("unknown market %q", market))
			return
		}
		segment = parsed
	}

	out, err := s.Snapshot.Dictionary(c.Request.Context(), segment)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	if out == nil {
		out = []domain.AssetPair{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getHistoryRates(c *gin.Context) {
	var req historyRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(rates.CodeInvalidInput), err.Error())
		return
	}

	out, err := s.Reconciler.History(c.Request.Context(), req.AssetPairIDs, req.Period, req.DateTime)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getHistoryRate(c *gin.Context) {
	var req historyRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(rates.CodeInvalidInput), err.Error())
		return
	}
	if req.Period == "" {
		respondError(c, http.StatusBadRequest, string(rates.CodeInvalidInput), "period is required")
		return
	}

	rec, err := s.Resolver.Resolve(c.Request.Context(), c.Param("assetPairId"), req.Period, req.DateTime)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) getOrderBooks(c *gin.Context) {
	out, err := s.OrderBooks.All(c.Request.Context())
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getOrderBook(c *gin.Context) {
	out, err := s.OrderBooks.Get(c.Request.Context(), c.Param("assetPairId"))
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// getMetrics returns the in-process metrics snapshot together with asset directory cache stats.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "MetricsUnavailable", "metrics not available")
		return
	}
	resp := gin.H{"metrics": s.Metrics.GetSnapshot()}
	if s.Directory != nil {
		resp["asset_directory"] = s.Directory.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// getPromMetrics returns a minimal Prometheus text exposition of key metrics.
func (s *Server) getPromMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.String(http.StatusServiceUnavailable, "# metrics not available\n")
		return
	}
	snapshot := s.Metrics.GetSnapshot()

	var b strings.Builder
	// Counters
	fmt.Fprintf(&b, "gateway_api_requests_total %d\n", snapshot.APIRequests)
	fmt.Fprintf(&b, "gateway_api_errors_total %d\n", snapshot.APIErrors)
	fmt.Fprintf(&b, "gateway_upstream_failures_total %d\n", snapshot.UpstreamFailures)
	fmt.Fprintf(&b, "gateway_backend_inconsistencies_total %d\n", snapshot.BackendInconsistencies)

	// Gauges for latency (ms)
	writeLatency := func(prefix string, ls monitor.LatencyStats) {
		if ls.Count == 0 {
			return
		}
		fmt.Fprintf(&b, "gateway_%s_latency_ms_avg %f\n", prefix, ls.Avg)
		fmt.Fprintf(&b, "gateway_%s_latency_ms_p50 %f\n", prefix, ls.P50)
		fmt.Fprintf(&b, "gateway_%s_latency_ms_p95 %f\n", prefix, ls.P95)
		fmt.Fprintf(&b, "gateway_%s_latency_ms_p99 %f\n", prefix, ls.P99)
	}
	writeLatency("api", snapshot.APILatency)
	writeLatency("feed", snapshot.FeedLatency)
	writeLatency("candles", snapshot.CandlesLatency)
	writeLatency("cache", snapshot.CacheLatency)

	fmt.Fprintf(&b, "gateway_stream_clients %d\n", snapshot.StreamClients)
	fmt.Fprintf(&b, "gateway_goroutines %d\n", snapshot.GoroutineCount)
	fmt.Fprintf(&b, "gateway_heap_alloc_bytes %d\n", snapshot.HeapAlloc)
	if s.Directory != nil {
		fmt.Fprintf(&b, "gateway_asset_pairs_cached %d\n", s.Directory.Stats().TotalItems)
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, b.String())
}
