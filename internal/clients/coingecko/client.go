// Package coingecko provides cryptocurrency market data fetching with
// caching, rate limiting, and retries.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aaakaind/letsgetcrypto/internal/clientdata"
	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

const (
	fearGreedURL = "https://api.alternative.me/fng/"

	// CoinGecko free tier allows roughly 10-30 calls/minute.
	requestInterval = 6 * time.Second

	maxRetries   = 3
	retryBackoff = 2 * time.Second
)

// Client for the CoinGecko API.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new CoinGecko client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(requestInterval), 1),
		log:       log.With().Str("client", "coingecko").Logger(),
		cacheRepo: cacheRepo,
	}
}

// marketChartResponse mirrors the market_chart endpoint payload:
// arrays of [unix_ms, value] pairs.
type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// FearGreedIndex is the alternative.me fear & greed reading.
type FearGreedIndex struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
}

// simplePriceKey namespaces current-price cache entries per coin.
func simplePriceKey(coinID string) string {
	return "coingecko:" + coinID
}

// FetchMarketChart fetches historical price, volume and market cap data for a
// coin. Resolution is hourly for horizons up to 90 days, daily beyond that.
// If the API fails, returns stale cached data if available.
func (c *Client) FetchMarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	cacheKey := fmt.Sprintf("%s:%d", coinID, days)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("coingecko_chart", cacheKey)
		if err == nil && data != nil {
			var cached marketChartResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("coin", coinID).Int("days", days).Msg("Cache hit")
				return chartToPoints(&cached), nil
			}
		}
	}

	interval := "daily"
	if days <= 90 {
		interval = "hourly"
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d&interval=%s",
		c.baseURL, coinID, days, interval)

	var chart marketChartResponse
	if err := c.getJSON(ctx, url, &chart); err != nil {
		if stale, ok := c.staleChart(cacheKey); ok {
			c.log.Warn().Err(err).Str("coin", coinID).Msg("API failed, using stale cached chart")
			return chartToPoints(stale), nil
		}
		return nil, fmt.Errorf("market chart request failed for %s: %w", coinID, err)
	}

	if len(chart.Prices) == 0 {
		return nil, fmt.Errorf("market chart for %s contained no prices", coinID)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("coingecko_chart", cacheKey, chart, clientdata.TTLMarketChart); err != nil {
			c.log.Warn().Err(err).Str("coin", coinID).Msg("Failed to cache market chart")
		}
	}

	points := chartToPoints(&chart)

	c.log.Info().
		Str("coin", coinID).
		Int("days", days).
		Int("points", len(points)).
		Msg("Fetched market chart")

	return points, nil
}

// FetchSimplePrice fetches the current USD price for a coin.
func (c *Client) FetchSimplePrice(ctx context.Context, coinID string) (float64, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("current_prices", simplePriceKey(coinID))
		if err == nil && data != nil {
			var price float64
			if err := json.Unmarshal(data, &price); err == nil {
				return price, nil
			}
		}
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coinID)

	var result map[string]map[string]float64
	if err := c.getJSON(ctx, url, &result); err != nil {
		return 0, fmt.Errorf("simple price request failed for %s: %w", coinID, err)
	}

	price, ok := result[coinID]["usd"]
	if !ok {
		return 0, fmt.Errorf("price not found for %s", coinID)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("current_prices", simplePriceKey(coinID), price, clientdata.TTLCurrentPrice); err != nil {
			c.log.Warn().Err(err).Str("coin", coinID).Msg("Failed to cache price")
		}
	}

	return price, nil
}

// FetchFearGreed fetches the latest fear & greed index reading.
func (c *Client) FetchFearGreed(ctx context.Context) (*FearGreedIndex, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("fear_greed", "latest")
		if err == nil && data != nil {
			var cached FearGreedIndex
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var result struct {
		Data []struct {
			Value               string `json:"value"`
			ValueClassification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, fearGreedURL, &result); err != nil {
		return nil, fmt.Errorf("fear & greed request failed: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("fear & greed response contained no data")
	}

	var value int
	if _, err := fmt.Sscanf(result.Data[0].Value, "%d", &value); err != nil {
		return nil, fmt.Errorf("failed to parse fear & greed value %q: %w", result.Data[0].Value, err)
	}

	index := &FearGreedIndex{
		Value:          value,
		Classification: result.Data[0].ValueClassification,
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("fear_greed", "latest", index, clientdata.TTLFearGreed); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache fear & greed index")
		}
	}

	return index, nil
}

// getJSON performs a rate-limited GET with constant-interval retries and
// decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "CryptoTradingTool/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryBackoff), maxRetries),
		ctx,
	)

	return backoff.Retry(operation, policy)
}

// staleChart retrieves a cached market chart even if expired.
func (c *Client) staleChart(cacheKey string) (*marketChartResponse, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get("coingecko_chart", cacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var cached marketChartResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}

	return &cached, true
}

// chartToPoints zips the parallel API arrays into a time-ordered series.
// Volume and market cap entries are matched to prices by timestamp.
func chartToPoints(chart *marketChartResponse) []domain.PricePoint {
	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, v := range chart.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}
	caps := make(map[int64]float64, len(chart.MarketCaps))
	for _, m := range chart.MarketCaps {
		caps[int64(m[0])] = m[1]
	}

	points := make([]domain.PricePoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		ms := int64(p[0])
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(ms).UTC(),
			Price:     p[1],
			Volume:    volumes[ms],
			MarketCap: caps[ms],
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return points
}
