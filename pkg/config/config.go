package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds environment-driven settings for the market gateway.
type Config struct {
	Port     string
	LogLevel string

	// Asset pairs and feed history
	DBDriver       string // "sqlite" or "postgres"
	DBDSN          string
	AssetPairsFile string
	AssetPairsTTL  time.Duration

	// Order books and market profile
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	OrderBookKeyFormat string // {pair} and {side} are substituted
	MarketProfileKey   string

	// Candle history service, one base URL per market segment
	CandlesSpotURL string
	CandlesMtURL   string
	CandlesRPS     float64
	CandlesTimeout time.Duration

	// Request handling
	HistoryConcurrency int
	RequestTimeout     time.Duration
	RateStreamInterval time.Duration
	CORSOrigins        []string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:              getEnv("DB_DSN", "./data/gateway.db"),
		AssetPairsFile:     os.Getenv("ASSET_PAIRS_FILE"),
		AssetPairsTTL:      getEnvDuration("ASSET_PAIRS_TTL", time.Minute),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		OrderBookKeyFormat: getEnv("ORDERBOOK_KEY_PATTERN", "OrderBook_{pair}_{side}"),
		MarketProfileKey:   getEnv("MARKET_PROFILE_KEY", "MarketProfile"),
		CandlesSpotURL:     strings.TrimRight(os.Getenv("CANDLES_SPOT_URL"), "/"),
		CandlesMtURL:       strings.TrimRight(os.Getenv("CANDLES_MT_URL"), "/"),
		CandlesRPS:         getEnvFloat("CANDLES_RPS", 50),
		CandlesTimeout:     getEnvDuration("CANDLES_TIMEOUT", 10*time.Second),
		HistoryConcurrency: getEnvInt("HISTORY_CONCURRENCY", 16),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateStreamInterval: getEnvDuration("RATE_STREAM_INTERVAL", 5*time.Second),
		CORSOrigins:        splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the gateway cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if !strings.Contains(c.OrderBookKeyFormat, "{pair}") || !strings.Contains(c.OrderBookKeyFormat, "{side}") {
		return errors.Errorf("ORDERBOOK_KEY_PATTERN must contain {pair} and {side}, got %q", c.OrderBookKeyFormat)
	}
	if c.CandlesRPS <= 0 {
		return errors.New("CANDLES_RPS must be positive")
	}
	if c.HistoryConcurrency <= 0 {
		return errors.New("HISTORY_CONCURRENCY must be positive")
	}
	if c.AssetPairsTTL <= 0 || c.RequestTimeout <= 0 || c.RateStreamInterval <= 0 || c.CandlesTimeout <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
