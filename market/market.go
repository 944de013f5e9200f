// Package market fetches coin listings and spot prices from a
// CoinGecko-compatible HTTP API. Quotes are cached through an
// optional PriceCache so portfolio valuation doesn't hammer the
// upstream on every request.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// A PriceCache stores recent spot prices keyed by coin ID.
type PriceCache interface {
	// GetPrices returns cached prices for the subset of ids present.
	GetPrices(ctx context.Context, coinIDs []string) (map[string]float64, error)
	// SetPrices stores quotes with the cache's TTL.
	SetPrices(ctx context.Context, prices map[string]float64) error
}

// Client talks to the market data API. The zero value is not usable;
// use New.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	cache   PriceCache
}

// New returns a client for the API at baseURL. cache may be nil, in
// which case every call hits the upstream.
func New(baseURL string, logger *slog.Logger, cache PriceCache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		cache:   cache,
	}
}

// Coins returns the first page of market listings ordered by market
// cap, the shape the market browsing page renders.
func (c *Client) Coins(ctx context.Context) ([]Coin, error) {
	q := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {"100"},
		"page":        {"1"},
	}
	var coins []Coin
	if err := c.get(ctx, "/coins/markets?"+q.Encode(), &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Prices returns current USD prices for the given coin IDs. Cached
// quotes are used where present; only the misses are fetched. Cache
// failures are logged and treated as misses.
func (c *Client) Prices(ctx context.Context, coinIDs []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(coinIDs))
	if len(coinIDs) == 0 {
		return prices, nil
	}

	if c.cache != nil {
		cached, err := c.cache.GetPrices(ctx, coinIDs)
		if err != nil {
			c.logger.Error("Could not read price cache", "error", err.Error())
		} else {
			for id, p := range cached {
				prices[id] = p
			}
		}
	}

	var missing []string
	for _, id := range coinIDs {
		if _, ok := prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	q := url.Values{
		"vs_currency": {"usd"},
		"ids":         {strings.Join(missing, ",")},
	}
	var coins []Coin
	if err := c.get(ctx, "/coins/markets?"+q.Encode(), &coins); err != nil {
		return nil, err
	}

	fetched := make(map[string]float64, len(coins))
	for _, coin := range coins {
		prices[coin.ID] = coin.CurrentPrice
		fetched[coin.ID] = coin.CurrentPrice
	}

	if c.cache != nil && len(fetched) > 0 {
		if err := c.cache.SetPrices(ctx, fetched); err != nil {
			c.logger.Error("Could not write price cache", "error", err.Error())
		}
	}

	return prices, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("market api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market api: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
