package service

import (
	"finboard-backend/internal/model"
)

// MergeContext combines the page-driven context with the aggregator's
// global snapshot into the context object attached to the next user turn.
//
// Precedence:
//   - Type always comes from the page; the snapshot never changes it.
//   - Domain payloads the page already set (stock, portfolio, screener,
//     news article, terminal session) win; the snapshot only fills gaps.
//   - Global-only fields (market, economic indicators, recent news,
//     watchlist, risk profile) always overlay, whatever the page type,
//     because they are useful cross-cutting context.
//
// The result is a deep copy; neither input is mutated.
func MergeContext(page model.ChatContext, global *model.GlobalContextState) model.ChatContext {
	merged := page.Clone()
	if merged.Type == "" {
		merged.Type = model.ContextTypeGeneral
	}
	if global == nil {
		return merged
	}

	if global.MarketData != nil {
		merged.Market = global.MarketData
	}
	if len(global.EconomicIndicators) > 0 {
		merged.EconomicIndicators = global.EconomicIndicators
	}
	if len(global.RecentNews) > 0 {
		merged.RecentNews = global.RecentNews
	}
	if len(global.Watchlist) > 0 {
		merged.Watchlist = global.Watchlist
	}
	if global.RiskProfile != nil {
		merged.RiskProfile = global.RiskProfile
	}

	// Page-local portfolio wins over the aggregator's generic summary.
	if merged.Portfolio == nil && global.Portfolio != nil {
		merged.Portfolio = global.Portfolio
	}

	return merged
}
