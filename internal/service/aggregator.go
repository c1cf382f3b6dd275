package service

import (
	"context"
	"sync"
	"time"

	"finboard-backend/internal/config"
	"finboard-backend/internal/marketdata"
	"finboard-backend/internal/model"
	"finboard-backend/pkg/logger"
)

// ContextAggregator produces best-effort GlobalContextState snapshots from
// the upstream data sources. Snapshots are immutable once published; a
// refresh builds a new instance. The single-flight guard is owned by the
// aggregator instance, so independent aggregators never share fetch state.
type ContextAggregator struct {
	client marketdata.Client

	freshnessWindow time.Duration
	refreshInterval time.Duration
	initialDelay    time.Duration
	quoteLimit      int

	mu       sync.Mutex
	snapshot *model.GlobalContextState
	fetching bool
}

func NewContextAggregator(client marketdata.Client, cfg config.AggregatorConfig) *ContextAggregator {
	return &ContextAggregator{
		client:          client,
		freshnessWindow: cfg.FreshnessWindow,
		refreshInterval: cfg.RefreshInterval,
		initialDelay:    cfg.InitialDelay,
		quoteLimit:      cfg.WatchlistQuoteLimit,
	}
}

// Snapshot returns the current global context. A fresh cached snapshot is
// returned as-is. When the cache is stale and no fetch is in flight, the
// call performs the fetch and returns the new snapshot. When a fetch is
// already in flight, the last known snapshot (possibly stale, possibly nil
// on cold start) is returned immediately instead of blocking.
func (a *ContextAggregator) Snapshot(ctx context.Context) *model.GlobalContextState {
	a.mu.Lock()
	if a.snapshot.Fresh(a.freshnessWindow) {
		snap := a.snapshot
		a.mu.Unlock()
		return snap
	}
	if a.fetching {
		snap := a.snapshot
		a.mu.Unlock()
		return snap
	}
	a.fetching = true
	a.mu.Unlock()

	return a.fetchAndPublish(ctx)
}

// Refresh forces a fetch regardless of freshness, still honoring the
// single-flight guard. Used by the refresh loop.
func (a *ContextAggregator) Refresh(ctx context.Context) *model.GlobalContextState {
	a.mu.Lock()
	if a.fetching {
		snap := a.snapshot
		a.mu.Unlock()
		return snap
	}
	a.fetching = true
	a.mu.Unlock()

	return a.fetchAndPublish(ctx)
}

// Run drives the periodic refresh until ctx is cancelled. The initial delay
// gives the dashboard time to push its page context first; it is a race
// mitigation, not a correctness guarantee (the page-context endpoint is the
// real signal).
func (a *ContextAggregator) Run(ctx context.Context) {
	select {
	case <-time.After(a.initialDelay):
	case <-ctx.Done():
		return
	}

	a.Refresh(ctx)

	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndPublish runs the fan-out and installs the result. Caller must
// have claimed the fetching flag.
func (a *ContextAggregator) fetchAndPublish(ctx context.Context) *model.GlobalContextState {
	snap := a.fetch(ctx)

	a.mu.Lock()
	a.snapshot = snap
	a.fetching = false
	a.mu.Unlock()

	return snap
}

// fetch issues every upstream query concurrently and waits for all of them
// to settle. A failing source degrades its field to absent; fetch itself
// never fails.
func (a *ContextAggregator) fetch(ctx context.Context) *model.GlobalContextState {
	snap := &model.GlobalContextState{}

	var (
		wg      sync.WaitGroup
		sectors []model.SectorPerformance
		gainers []model.MoverQuote
		losers  []model.MoverQuote
	)

	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Debugf("aggregator: %s unavailable: %v", name, err)
			}
		}()
	}

	run("market overview", func() error {
		market, err := a.client.MarketOverview(ctx)
		if err != nil {
			return err
		}
		snap.MarketData = market
		return nil
	})
	run("sector performance", func() error {
		s, err := a.client.SectorPerformance(ctx)
		if err != nil {
			return err
		}
		sectors = s
		return nil
	})
	run("top movers", func() error {
		g, l, err := a.client.TopMovers(ctx)
		if err != nil {
			return err
		}
		gainers, losers = g, l
		return nil
	})
	run("economic indicators", func() error {
		indicators, err := a.client.EconomicIndicators(ctx)
		if err != nil {
			return err
		}
		snap.EconomicIndicators = indicators
		return nil
	})
	run("recent news", func() error {
		news, err := a.client.RecentNews(ctx)
		if err != nil {
			return err
		}
		snap.RecentNews = news
		return nil
	})
	run("watchlist quotes", func() error {
		symbols, err := a.client.Watchlist(ctx)
		if err != nil {
			return err
		}
		snap.Watchlist = a.quoteWatchlist(ctx, symbols)
		return nil
	})
	run("risk profile", func() error {
		profile, err := a.client.RiskProfile(ctx)
		if err != nil {
			return err
		}
		snap.RiskProfile = profile
		return nil
	})
	run("portfolio summary", func() error {
		summary, err := a.client.PortfolioSummary(ctx)
		if err != nil {
			return err
		}
		snap.Portfolio = summary
		return nil
	})

	wg.Wait()

	// Sector and mover data fold into the market overview; a missing
	// overview still carries them on an otherwise empty MarketContext.
	if sectors != nil || gainers != nil || losers != nil {
		if snap.MarketData == nil {
			snap.MarketData = &model.MarketContext{}
		}
		snap.MarketData.Sectors = sectors
		snap.MarketData.TopGainers = gainers
		snap.MarketData.TopLosers = losers
	}

	snap.LastUpdated = time.Now()
	return snap
}

// quoteWatchlist is the second-order fan-out: live quotes for up to
// quoteLimit watchlist symbols, concurrently. Per-symbol failures are
// dropped from the result, never propagated.
func (a *ContextAggregator) quoteWatchlist(ctx context.Context, symbols []string) []model.WatchlistQuote {
	if len(symbols) > a.quoteLimit {
		symbols = symbols[:a.quoteLimit]
	}

	quotes := make([]*model.WatchlistQuote, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			quote, err := a.client.Quote(ctx, symbol)
			if err != nil {
				logger.Debugf("aggregator: quote for %s unavailable: %v", symbol, err)
				return
			}
			quotes[i] = quote
		}(i, symbol)
	}
	wg.Wait()

	result := make([]model.WatchlistQuote, 0, len(quotes))
	for _, q := range quotes {
		if q != nil {
			result = append(result, *q)
		}
	}
	return result
}
