package service

import (
	"testing"
	"time"

	"finboard-backend/internal/model"

	"github.com/shopspring/decimal"
)

func stockPage(symbol string) model.ChatContext {
	return model.ChatContext{
		Type: model.ContextTypeStock,
		Stock: &model.StockContext{
			Symbol: symbol,
			Price:  decimal.NewFromFloat(189.84),
		},
	}
}

func globalSnapshot() *model.GlobalContextState {
	return &model.GlobalContextState{
		MarketData: &model.MarketContext{
			Indices: []model.IndexQuote{{Symbol: "SPX"}},
		},
		EconomicIndicators: []model.EconomicIndicator{{Name: "CPI"}},
		RecentNews:         []model.NewsItem{{Headline: "Fed holds rates"}},
		Watchlist:          []model.WatchlistQuote{{Symbol: "MSFT"}},
		RiskProfile:        &model.RiskProfile{Tolerance: "moderate"},
		Portfolio:          &model.PortfolioContext{PositionCount: 7},
		LastUpdated:        time.Now(),
	}
}

func TestMergeKeepsPageType(t *testing.T) {
	merged := MergeContext(stockPage("AAPL"), globalSnapshot())

	if merged.Type != model.ContextTypeStock {
		t.Errorf("global refresh must not change type, got %s", merged.Type)
	}
	if merged.Stock == nil || merged.Stock.Symbol != "AAPL" {
		t.Errorf("page stock payload must survive the merge: %+v", merged.Stock)
	}
}

func TestMergeOverlaysGlobalFields(t *testing.T) {
	merged := MergeContext(stockPage("AAPL"), globalSnapshot())

	if merged.Market == nil || len(merged.Market.Indices) != 1 {
		t.Error("market data must be overlaid on any page type")
	}
	if len(merged.EconomicIndicators) != 1 {
		t.Error("economic indicators must be overlaid")
	}
	if len(merged.RecentNews) != 1 {
		t.Error("recent news must be overlaid")
	}
	if len(merged.Watchlist) != 1 {
		t.Error("watchlist must be overlaid")
	}
	if merged.RiskProfile == nil {
		t.Error("risk profile must be overlaid")
	}
}

func TestMergePagePortfolioWins(t *testing.T) {
	page := model.ChatContext{
		Type:      model.ContextTypePortfolio,
		Portfolio: &model.PortfolioContext{PositionCount: 2},
	}

	merged := MergeContext(page, globalSnapshot())

	if merged.Portfolio.PositionCount != 2 {
		t.Errorf("page-local portfolio must win over the aggregator's, got %d positions", merged.Portfolio.PositionCount)
	}
}

func TestMergeFillsMissingPortfolio(t *testing.T) {
	merged := MergeContext(stockPage("AAPL"), globalSnapshot())

	if merged.Portfolio == nil || merged.Portfolio.PositionCount != 7 {
		t.Error("aggregator fills portfolio when the page did not set it")
	}
}

func TestMergeKeepsPageTerminalSession(t *testing.T) {
	page := model.ChatContext{
		Type:     model.ContextTypeTerminal,
		Terminal: &model.TerminalContext{ActiveSymbols: []string{"AAPL"}, Layout: "grid"},
	}

	merged := MergeContext(page, globalSnapshot())

	if merged.Type != model.ContextTypeTerminal {
		t.Errorf("terminal page type must survive the merge, got %s", merged.Type)
	}
	// Terminal session data is page-driven only; the snapshot carries no
	// terminal source.
	if merged.Terminal == nil || merged.Terminal.Layout != "grid" {
		t.Errorf("page terminal session must survive the merge: %+v", merged.Terminal)
	}
}

func TestMergeNilGlobalLeavesPageUnchanged(t *testing.T) {
	merged := MergeContext(stockPage("AAPL"), nil)

	if merged.Type != model.ContextTypeStock || merged.Stock.Symbol != "AAPL" {
		t.Error("nil global snapshot must leave the page context unchanged")
	}
	if merged.Market != nil || merged.RiskProfile != nil {
		t.Error("nil global snapshot must not invent fields")
	}
}

func TestMergeDefaultsEmptyTypeToGeneral(t *testing.T) {
	merged := MergeContext(model.ChatContext{}, globalSnapshot())

	if merged.Type != model.ContextTypeGeneral {
		t.Errorf("empty type defaults to general, got %s", merged.Type)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	page := stockPage("AAPL")
	global := globalSnapshot()

	merged := MergeContext(page, global)
	merged.Stock.Symbol = "TSLA"
	merged.EconomicIndicators = append(merged.EconomicIndicators, model.EconomicIndicator{Name: "GDP"})

	if page.Stock.Symbol != "AAPL" {
		t.Error("merge must not alias the page context")
	}
	if len(global.EconomicIndicators) != 1 {
		t.Error("merge must not mutate the global snapshot")
	}
}
