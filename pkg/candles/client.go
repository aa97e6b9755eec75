// Package candles is an HTTP client for the candle-history service.
package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"market-gateway/internal/domain"
	"market-gateway/pkg/retrier"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Observer receives the latency and outcome of each completed call.
type Observer func(elapsed time.Duration, err error)

// Client wraps REST access to one candle-history service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter  *rate.Limiter
	retrier  *retrier.Retrier
	logger   *zap.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithRetrier replaces the default backoff policy.
func WithRetrier(r *retrier.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver registers a hook called after every logical call, retries included.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(50), 50),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retrier.New(retrier.OnRetry(func(attempt int, err error) {
			c.logger.Warn("retrying candle service call",
				zap.String("base_url", c.BaseURL),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}))
	}
	return c
}

type candleDTO struct {
	DateTime              time.Time       `json:"dateTime"`
	Open                  decimal.Decimal `json:"open"`
	Close                 decimal.Decimal `json:"close"`
	High                  decimal.Decimal `json:"high"`
	Low                   decimal.Decimal `json:"low"`
	TradingVolume         decimal.Decimal `json:"tradingVolume"`
	TradingOppositeVolume decimal.Decimal `json:"tradingOppositeVolume"`
}

type historyResponse struct {
	History []candleDTO `json:"history"`
}

// QueryCandles fetches the pair's candles of priceType and period with DateTime in [from, to).
func (c *Client) QueryCandles(ctx context.Context, pairID string, priceType domain.PriceType, period domain.PricePeriod, from, to time.Time) ([]domain.Candle, error) {
	u := fmt.Sprintf("%s/api/CandlesHistory/%s/%s/%s/%s/%s",
		c.BaseURL,
		url.PathEscape(pairID),
		url.PathEscape(string(priceType)),
		url.PathEscape(string(period)),
		url.PathEscape(from.UTC().Format(timeLayout)),
		url.PathEscape(to.UTC().Format(timeLayout)),
	)

	var resp historyResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, errors.Wrapf(err, "candles %s %s %s", pairID, priceType, period)
	}

	out := make([]domain.Candle, 0, len(resp.History))
	for _, h := range resp.History {
		out = append(out, domain.Candle{
			AssetPairID:    pairID,
			PriceType:      priceType,
			Period:         period,
			DateTime:       h.DateTime.UTC(),
			Open:           h.Open,
			High:           h.High,
			Low:            h.Low,
			Close:          h.Close,
			Volume:         h.TradingVolume,
			OppositeVolume: h.TradingOppositeVolume,
		})
	}
	return out, nil
}

// AvailablePairs lists the asset pairs the service holds series for.
func (c *Client) AvailablePairs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, c.BaseURL+"/api/CandlesHistory/availableAssetPairs", &ids); err != nil {
		return nil, errors.Wrap(err, "available asset pairs")
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	start := time.Now()
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retrier.Permanent(err)
		}
		return c.do(ctx, u, out)
	})
	if c.observer != nil {
		c.observer(time.Since(start), err)
	}
	return err
}

func (c *Client) do(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return retrier.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return errors.Errorf("candle service status %d", res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return retrier.Permanent(errors.Errorf("candle service status %d: %s", res.StatusCode, body))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return retrier.Permanent(errors.Wrap(err, "decode candle service response"))
	}
	return nil
}
