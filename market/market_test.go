package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

func TestClient_Coins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("Got path %q, want /coins/markets", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" {
			t.Errorf("Got vs_currency %q, want usd", q.Get("vs_currency"))
		}
		if q.Get("order") != "market_cap_desc" {
			t.Errorf("Got order %q, want market_cap_desc", q.Get("order"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 65000, "market_cap_rank": 1},
			{"id": "ethereum", "symbol": "eth", "name": "Ethereum", "current_price": 3500, "market_cap_rank": 2}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, slogt.New(t), nil)
	coins, err := c.Coins(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 65000, MarketCapRank: 1},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3500, MarketCapRank: 2},
	}
	if diff := cmp.Diff(want, coins); diff != "" {
		t.Errorf("Coins mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Coins_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, slogt.New(t), nil)
	if _, err := c.Coins(context.Background()); err == nil {
		t.Error("Expected error on HTTP 429, got nil")
	}
}

func TestClient_Prices(t *testing.T) {
	var upstreamIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamIDs = append(upstreamIDs, r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "ethereum", "symbol": "eth", "name": "Ethereum", "current_price": 3500}]`))
	}))
	defer srv.Close()

	cache := &testpricecache{
		getPrices: func(t *testing.T, coinIDs []string) (map[string]float64, error) {
			// bitcoin is cached, ethereum is a miss.
			return map[string]float64{"bitcoin": 65000}, nil
		},
		setPrices: func(t *testing.T, prices map[string]float64) error {
			if len(prices) != 1 || prices["ethereum"] != 3500 {
				t.Errorf("Got write-back %v, want map[ethereum:3500]", prices)
			}
			return nil
		},
	}
	cache.T = t

	c := New(srv.URL, slogt.New(t), cache)
	prices, err := c.Prices(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]float64{"bitcoin": 65000, "ethereum": 3500}
	if diff := cmp.Diff(want, prices); diff != "" {
		t.Errorf("Prices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ethereum"}, upstreamIDs); diff != "" {
		t.Errorf("Upstream fetches mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Prices_AllCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Upstream should not be hit when every price is cached")
	}))
	defer srv.Close()

	cache := &testpricecache{
		getPrices: func(t *testing.T, coinIDs []string) (map[string]float64, error) {
			return map[string]float64{"bitcoin": 65000}, nil
		},
	}
	cache.T = t

	c := New(srv.URL, slogt.New(t), cache)
	prices, err := c.Prices(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatal(err)
	}
	if prices["bitcoin"] != 65000 {
		t.Errorf("Got price %v, want 65000", prices["bitcoin"])
	}
}

// A broken cache behaves like a cold one.
func TestClient_Prices_CacheError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 65000}]`))
	}))
	defer srv.Close()

	cache := &testpricecache{
		getPrices: func(t *testing.T, coinIDs []string) (map[string]float64, error) {
			return nil, errors.New("something went wrong")
		},
		setPrices: func(t *testing.T, prices map[string]float64) error {
			return errors.New("something went wrong")
		},
	}
	cache.T = t

	c := New(srv.URL, slogt.New(t), cache)
	prices, err := c.Prices(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatal(err)
	}
	if prices["bitcoin"] != 65000 {
		t.Errorf("Got price %v, want 65000", prices["bitcoin"])
	}
}

func TestClient_Prices_Empty(t *testing.T) {
	c := New("http://example.invalid", slogt.New(t), nil)
	prices, err := c.Prices(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 0 {
		t.Errorf("Got %d prices, want 0", len(prices))
	}
}

type testpricecache struct {
	T         *testing.T
	getPrices func(t *testing.T, coinIDs []string) (map[string]float64, error)
	setPrices func(t *testing.T, prices map[string]float64) error
}

func (c *testpricecache) GetPrices(_ context.Context, coinIDs []string) (map[string]float64, error) {
	return c.getPrices(c.T, coinIDs)
}

func (c *testpricecache) SetPrices(_ context.Context, prices map[string]float64) error {
	return c.setPrices(c.T, prices)
}
