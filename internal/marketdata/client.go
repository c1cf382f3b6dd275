// Package marketdata is the client for the dashboard's upstream financial
// data APIs. The aggregator treats every method as independently fallible:
// any non-success response surfaces as an error and the caller degrades the
// corresponding context field to absent.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"finboard-backend/internal/model"
	"finboard-backend/internal/utils"
)

// Client is the set of upstream queries the aggregator fans out over.
type Client interface {
	MarketOverview(ctx context.Context) (*model.MarketContext, error)
	SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error)
	TopMovers(ctx context.Context) (gainers, losers []model.MoverQuote, err error)
	EconomicIndicators(ctx context.Context) ([]model.EconomicIndicator, error)
	RecentNews(ctx context.Context) ([]model.NewsItem, error)
	Watchlist(ctx context.Context) ([]string, error)
	Quote(ctx context.Context, symbol string) (*model.WatchlistQuote, error)
	RiskProfile(ctx context.Context) (*model.RiskProfile, error)
	PortfolioSummary(ctx context.Context) (*model.PortfolioContext, error)
}

// HTTPClient talks to the dashboard's data gateway.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  utils.NewHTTPClient(timeout),
	}
}

// getJSON performs a GET and decodes the JSON response into data. Any
// non-200 status is an error; the aggregator never distinguishes why a
// source failed.
func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, data interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot GET %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(data)
}

func (c *HTTPClient) MarketOverview(ctx context.Context) (*model.MarketContext, error) {
	var payload struct {
		Indices []model.IndexQuote `json:"indices"`
	}
	if err := c.getJSON(ctx, "/api/market/overview", nil, &payload); err != nil {
		return nil, err
	}
	return &model.MarketContext{Indices: payload.Indices}, nil
}

func (c *HTTPClient) SectorPerformance(ctx context.Context) ([]model.SectorPerformance, error) {
	var sectors []model.SectorPerformance
	if err := c.getJSON(ctx, "/api/market/sectors", nil, &sectors); err != nil {
		return nil, err
	}
	return sectors, nil
}

func (c *HTTPClient) TopMovers(ctx context.Context) ([]model.MoverQuote, []model.MoverQuote, error) {
	var payload struct {
		Gainers []model.MoverQuote `json:"gainers"`
		Losers  []model.MoverQuote `json:"losers"`
	}
	if err := c.getJSON(ctx, "/api/market/movers", nil, &payload); err != nil {
		return nil, nil, err
	}
	return payload.Gainers, payload.Losers, nil
}

func (c *HTTPClient) EconomicIndicators(ctx context.Context) ([]model.EconomicIndicator, error) {
	var indicators []model.EconomicIndicator
	if err := c.getJSON(ctx, "/api/economy/indicators", nil, &indicators); err != nil {
		return nil, err
	}
	return indicators, nil
}

func (c *HTTPClient) RecentNews(ctx context.Context) ([]model.NewsItem, error) {
	var items []model.NewsItem
	query := url.Values{"limit": {"10"}}
	if err := c.getJSON(ctx, "/api/news/recent", query, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *HTTPClient) Watchlist(ctx context.Context) ([]string, error) {
	var payload struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.getJSON(ctx, "/api/user/watchlist", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Symbols, nil
}

func (c *HTTPClient) Quote(ctx context.Context, symbol string) (*model.WatchlistQuote, error) {
	var quote model.WatchlistQuote
	query := url.Values{"symbol": {symbol}}
	if err := c.getJSON(ctx, "/api/market/quote", query, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *HTTPClient) RiskProfile(ctx context.Context) (*model.RiskProfile, error) {
	var profile model.RiskProfile
	if err := c.getJSON(ctx, "/api/user/risk-profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) PortfolioSummary(ctx context.Context) (*model.PortfolioContext, error) {
	var summary model.PortfolioContext
	if err := c.getJSON(ctx, "/api/portfolio/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
