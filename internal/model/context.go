package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContextType identifies the page-driven domain the user is currently
// looking at. It is always set by the dashboard page, never by the
// aggregator.
type ContextType string

const (
	ContextTypeStock     ContextType = "stock"
	ContextTypeMarket    ContextType = "market"
	ContextTypePortfolio ContextType = "portfolio"
	ContextTypeScreener  ContextType = "screener"
	ContextTypeNews      ContextType = "news"
	ContextTypeTerminal  ContextType = "terminal"
	ContextTypeGeneral   ContextType = "general"
)

// IndexQuote is a single market index snapshot.
type IndexQuote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// SectorPerformance is one sector's daily performance.
type SectorPerformance struct {
	Sector        string          `json:"sector"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// MoverQuote is a top gainer or loser.
type MoverQuote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// MarketContext is the aggregated market overview attached to chat context.
type MarketContext struct {
	Indices    []IndexQuote        `json:"indices,omitempty"`
	Sectors    []SectorPerformance `json:"sectors,omitempty"`
	TopGainers []MoverQuote        `json:"topGainers,omitempty"`
	TopLosers  []MoverQuote        `json:"topLosers,omitempty"`
}

// StockContext describes the symbol the user is viewing on a stock page.
type StockContext struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price,omitempty"`
	ChangePercent decimal.Decimal `json:"changePercent,omitempty"`
	Sector        string          `json:"sector,omitempty"`
	PERatio       decimal.Decimal `json:"peRatio,omitempty"`
}

// PortfolioContext summarises the user's holdings.
type PortfolioContext struct {
	TotalValue    decimal.Decimal `json:"totalValue"`
	DayChange     decimal.Decimal `json:"dayChange"`
	DayChangePct  decimal.Decimal `json:"dayChangePercent"`
	PositionCount int             `json:"positionCount"`
	TopHoldings   []string        `json:"topHoldings,omitempty"`
}

// ScreenerContext carries the filters active on a screener page.
type ScreenerContext struct {
	Filters     map[string]string `json:"filters,omitempty"`
	ResultCount int               `json:"resultCount"`
}

// NewsContext is the article the user has open on a news page.
type NewsContext struct {
	Headline string   `json:"headline"`
	Source   string   `json:"source,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
}

// TerminalContext carries terminal-page session data.
type TerminalContext struct {
	ActiveSymbols []string `json:"activeSymbols,omitempty"`
	Layout        string   `json:"layout,omitempty"`
}

// EconomicIndicator is one macro data point (CPI, rates, ...).
type EconomicIndicator struct {
	Name     string          `json:"name"`
	Value    decimal.Decimal `json:"value"`
	Unit     string          `json:"unit,omitempty"`
	Previous decimal.Decimal `json:"previous,omitempty"`
}

// NewsItem is a headline from the global news feed.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Source      string    `json:"source,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitempty"`
}

// WatchlistQuote is a live quote for a watchlist member.
type WatchlistQuote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// RiskProfile is the user's stored risk preference.
type RiskProfile struct {
	Tolerance string   `json:"tolerance"`
	Horizon   string   `json:"horizon,omitempty"`
	Goals     []string `json:"goals,omitempty"`
}

// ChatContext is the context object attached to every outgoing assistant
// request. Type always reflects the page-driven domain; the global fields
// (Market, EconomicIndicators, RecentNews, Watchlist, RiskProfile) are
// additive overlays and never change Type.
type ChatContext struct {
	Type               ContextType         `json:"type"`
	Stock              *StockContext       `json:"stock,omitempty"`
	Market             *MarketContext      `json:"market,omitempty"`
	Portfolio          *PortfolioContext   `json:"portfolio,omitempty"`
	Screener           *ScreenerContext    `json:"screener,omitempty"`
	News               *NewsContext        `json:"news,omitempty"`
	Terminal           *TerminalContext    `json:"terminal,omitempty"`
	EconomicIndicators []EconomicIndicator `json:"economicIndicators,omitempty"`
	RecentNews         []NewsItem          `json:"newsContext,omitempty"`
	Watchlist          []WatchlistQuote    `json:"watchlist,omitempty"`
	RiskProfile        *RiskProfile        `json:"userRiskProfile,omitempty"`
}

// Clone returns a deep copy. Messages hold context snapshots by value, so a
// later page navigation or global refresh cannot retroactively alter what a
// message claims it knew.
func (c ChatContext) Clone() ChatContext {
	out := c
	if c.Stock != nil {
		s := *c.Stock
		out.Stock = &s
	}
	if c.Market != nil {
		out.Market = c.Market.clone()
	}
	if c.Portfolio != nil {
		p := *c.Portfolio
		p.TopHoldings = append([]string(nil), c.Portfolio.TopHoldings...)
		out.Portfolio = &p
	}
	if c.Screener != nil {
		s := *c.Screener
		if c.Screener.Filters != nil {
			s.Filters = make(map[string]string, len(c.Screener.Filters))
			for k, v := range c.Screener.Filters {
				s.Filters[k] = v
			}
		}
		out.Screener = &s
	}
	if c.News != nil {
		n := *c.News
		n.Symbols = append([]string(nil), c.News.Symbols...)
		out.News = &n
	}
	if c.Terminal != nil {
		t := *c.Terminal
		t.ActiveSymbols = append([]string(nil), c.Terminal.ActiveSymbols...)
		out.Terminal = &t
	}
	if c.RiskProfile != nil {
		r := *c.RiskProfile
		r.Goals = append([]string(nil), c.RiskProfile.Goals...)
		out.RiskProfile = &r
	}
	out.EconomicIndicators = append([]EconomicIndicator(nil), c.EconomicIndicators...)
	out.RecentNews = append([]NewsItem(nil), c.RecentNews...)
	out.Watchlist = append([]WatchlistQuote(nil), c.Watchlist...)
	return out
}

func (m *MarketContext) clone() *MarketContext {
	out := &MarketContext{}
	out.Indices = append([]IndexQuote(nil), m.Indices...)
	out.Sectors = append([]SectorPerformance(nil), m.Sectors...)
	out.TopGainers = append([]MoverQuote(nil), m.TopGainers...)
	out.TopLosers = append([]MoverQuote(nil), m.TopLosers...)
	return out
}

// GlobalContextState is the aggregator's merged best-effort snapshot of all
// global data sources. It is immutable once produced; a refresh publishes a
// new instance. Nil or empty fields mean that source was unavailable, not
// that aggregation failed.
type GlobalContextState struct {
	MarketData         *MarketContext      `json:"marketData,omitempty"`
	EconomicIndicators []EconomicIndicator `json:"economicIndicators,omitempty"`
	Watchlist          []WatchlistQuote    `json:"watchlist,omitempty"`
	RecentNews         []NewsItem          `json:"recentNews,omitempty"`
	RiskProfile        *RiskProfile        `json:"userRiskProfile,omitempty"`
	Portfolio          *PortfolioContext   `json:"portfolio,omitempty"`
	LastUpdated        time.Time           `json:"lastUpdated"`
}

// Fresh reports whether the snapshot is younger than window.
func (g *GlobalContextState) Fresh(window time.Duration) bool {
	if g == nil {
		return false
	}
	return time.Since(g.LastUpdated) < window
}
