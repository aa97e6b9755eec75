package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"market-gateway/internal/domain"
	"market-gateway/pkg/candles"
	"market-gateway/pkg/config"
	"market-gateway/pkg/db"
	"market-gateway/pkg/redisstore"
)

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found")
	}

	fmt.Println("Market Gateway Health Check")
	fmt.Println("===========================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := HealthReport{
		Overall:  "HEALTHY",
		Services: make([]HealthStatus, 0),
	}

	cfg, cfgStatus := checkConfig()
	report.Services = append(report.Services, cfgStatus)
	if cfg != nil {
		report.Services = append(report.Services, checkDatabase(ctx, cfg))
		report.Services = append(report.Services, checkRedis(ctx, cfg))
		report.Services = append(report.Services, checkCandles(ctx, cfg, domain.SegmentSpot, cfg.CandlesSpotURL))
		report.Services = append(report.Services, checkCandles(ctx, cfg, domain.SegmentMargin, cfg.CandlesMtURL))
		report.Services = append(report.Services, checkAPIServer(ctx, cfg))
	}

	// Determine overall status
	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" && report.Overall != "UNHEALTHY" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println("Results:")
	fmt.Println("--------")
	for _, svc := range report.Services {
		statusIcon := "✓"
		if svc.Status == "UNHEALTHY" {
			statusIcon = "✗"
		} else if svc.Status == "DEGRADED" {
			statusIcon = "⚠"
		}
		fmt.Printf("%s %-20s %s %s\n", statusIcon, svc.Service, svc.Status, svc.Message)
	}

	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
	}

	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: "HEALTHY", Timestamp: time.Now()}
}

func checkConfig() (*config.Config, HealthStatus) {
	status := newStatus("Configuration")

	cfg, err := config.Load()
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, status
	}

	status.Message = fmt.Sprintf("Port=%s DB=%s", cfg.Port, cfg.DBDriver)
	return cfg, status
}

// checkDatabase pings the SQL store and reports the asset pair count.
func checkDatabase(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Database")

	database, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Connection failed: %v", err)
		return status
	}
	defer database.Close()

	if err := database.Ping(ctx); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Ping failed: %v", err)
		return status
	}

	pairs, err := database.ListAssetPairs(ctx)
	if err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("Schema not ready: %v", err)
		return status
	}
	if len(pairs) == 0 {
		status.Status = "DEGRADED"
		status.Message = "No asset pairs configured"
		return status
	}

	status.Message = fmt.Sprintf("Connected (%d asset pairs)", len(pairs))
	return status
}

func checkRedis(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Redis")

	client, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	defer client.Close()

	store := redisstore.New(client, redisstore.Options{
		OrderBookKeyPattern: cfg.OrderBookKeyFormat,
		ProfileKey:          cfg.MarketProfileKey,
	})
	profiles, err := store.AllProfiles(ctx)
	if err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("Market profile unreadable: %v", err)
		return status
	}

	status.Message = fmt.Sprintf("Connected (%d market profile entries)", len(profiles))
	return status
}

func checkCandles(ctx context.Context, cfg *config.Config, segment domain.MarketSegment, baseURL string) HealthStatus {
	status := newStatus("Candles " + segment.String())

	if baseURL == "" {
		status.Status = "DEGRADED"
		status.Message = "URL not configured"
		return status
	}

	client := candles.NewClient(baseURL, candles.WithTimeout(cfg.CandlesTimeout))
	pairs, err := client.AvailablePairs(ctx)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}

	status.Message = fmt.Sprintf("Serving %d asset pairs", len(pairs))
	return status
}

func checkAPIServer(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("API Server")

	url := fmt.Sprintf("http://localhost:%s/health", cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}

	status.Message = "Running"
	return status
}
