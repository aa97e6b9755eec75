package api

import (
	"context"
	"net/http"
	"time"

	"market-gateway/internal/assets"
	"market-gateway/internal/events"
	"market-gateway/internal/monitor"
	"market-gateway/internal/orderbook"
	"market-gateway/internal/rates"
	"market-gateway/pkg/db"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a backing store that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP endpoints around the rate and order book assemblers.
type Server struct {
	Router     *gin.Engine
	Bus        *events.Bus
	Metrics    *monitor.Metrics
	Reconciler *rates.Reconciler
	Resolver   *rates.Resolver
	Snapshot   *rates.Snapshot
	OrderBooks *orderbook.Assembler
	Directory  *assets.Directory
	DB         *db.Database
	Cache      Pinger
	Logger     *zap.Logger
}

// Options carries the HTTP-level settings of a Server.
type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

func NewServer(s *Server, opts Options) *Server {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(s.Logger, s.Metrics))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(CORSMiddleware(opts.CORSOrigins))

	s.Router = r
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.GET("/metrics/prometheus", s.getPromMetrics)

		pairs := api.Group("/AssetPairs")
		{
			pairs.GET("/rate", s.getRates)
			pairs.GET("/rate/stream", s.websocket)
			pairs.GET("/rate/:assetPairId", s.getRate)
			pairs.GET("/dictionary", s.getDictionary)
			pairs.GET("/dictionary/:market", s.getDictionary)
			pairs.POST("/rate/history", s.getHistoryRates)
			pairs.POST("/rate/history/:assetPairId", s.getHistoryRate)
		}

		api.GET("/OrderBook", s.getOrderBooks)
		api.GET("/OrderBook/:assetPairId", s.getOrderBook)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	status := http.StatusOK

	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
