package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"DeskSync/internal/domain/models"
	"DeskSync/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// nopMetrics satisfies the metrics interface without touching the global
// Prometheus registry.
type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, float64)    {}
func (nopMetrics) RecordStaleDrop(string)                 {}
func (nopMetrics) RecordPatch(string)                     {}
func (nopMetrics) RecordMutation(string, string, float64) {}
func (nopMetrics) RecordRefreshCycle(float64)             {}
func (nopMetrics) RecordScopeSwitch()                     {}
func (nopMetrics) SetActiveSessions(int)                  {}

// fakeBackend returns canned domain values and lets a test override any
// fetch. Overrides receive the account so cross-scope tests can branch.
type fakeBackend struct {
	mu          sync.Mutex
	summaries   map[models.AccountID]models.Summary
	holdings    map[models.AccountID][]models.Holding
	fetchHook   func(account models.AccountID, d models.Domain) (any, error)
	invalidated []models.AccountID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		summaries: make(map[models.AccountID]models.Summary),
		holdings:  make(map[models.AccountID][]models.Holding),
	}
}

func (f *fakeBackend) hook(account models.AccountID, d models.Domain) (any, bool, error) {
	f.mu.Lock()
	h := f.fetchHook
	f.mu.Unlock()
	if h == nil {
		return nil, false, nil
	}
	v, err := h(account, d)
	if v == nil && err == nil {
		// hook declined; fall back to canned data
		return nil, false, nil
	}
	return v, true, err
}

func (f *fakeBackend) FetchSummary(_ context.Context, account models.AccountID) (models.Summary, error) {
	if v, ok, err := f.hook(account, models.DomainSummary); ok {
		if err != nil {
			return models.Summary{}, err
		}
		return v.(models.Summary), nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries[account], nil
}

func (f *fakeBackend) FetchHoldings(_ context.Context, account models.AccountID) ([]models.Holding, error) {
	if v, ok, err := f.hook(account, models.DomainHoldings); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.Holding), nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holdings[account], nil
}

func (f *fakeBackend) FetchWatchlist(_ context.Context, account models.AccountID) ([]models.WatchlistEntry, error) {
	if v, ok, err := f.hook(account, models.DomainWatchlist); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.WatchlistEntry), nil
	}
	return nil, nil
}

func (f *fakeBackend) FetchTrades(_ context.Context, account models.AccountID) ([]models.TradeRecord, error) {
	if v, ok, err := f.hook(account, models.DomainTrades); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.TradeRecord), nil
	}
	return nil, nil
}

func (f *fakeBackend) FetchMarketMovers(_ context.Context) (models.MarketMovers, error) {
	if v, ok, err := f.hook("", models.DomainMarketMovers); ok {
		if err != nil {
			return models.MarketMovers{}, err
		}
		return v.(models.MarketMovers), nil
	}
	return models.MarketMovers{}, nil
}

func (f *fakeBackend) FetchExchangeStatus(_ context.Context) (models.ExchangeStatus, error) {
	if v, ok, err := f.hook("", models.DomainExchangeStatus); ok {
		if err != nil {
			return models.ExchangeStatus{}, err
		}
		return v.(models.ExchangeStatus), nil
	}
	return models.ExchangeStatus{}, nil
}

func (f *fakeBackend) FetchStewardPrediction(_ context.Context, account models.AccountID) (models.StewardPrediction, error) {
	if v, ok, err := f.hook(account, models.DomainStewardPrediction); ok {
		if err != nil {
			return models.StewardPrediction{}, err
		}
		return v.(models.StewardPrediction), nil
	}
	return models.StewardPrediction{}, nil
}

func (f *fakeBackend) FetchMarketResearch(_ context.Context) ([]models.ResearchNote, error) {
	if v, ok, err := f.hook("", models.DomainMarketResearch); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.ResearchNote), nil
	}
	return nil, nil
}

func (f *fakeBackend) FetchOrderBook(_ context.Context, account models.AccountID) (models.OrderBook, error) {
	if v, ok, err := f.hook(account, models.DomainOrderBook); ok {
		if err != nil {
			return models.OrderBook{}, err
		}
		return v.(models.OrderBook), nil
	}
	return models.OrderBook{}, nil
}

func (f *fakeBackend) FetchMacroIndicators(_ context.Context) ([]models.MacroIndicator, error) {
	if v, ok, err := f.hook("", models.DomainMacroIndicators); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.MacroIndicator), nil
	}
	return nil, nil
}

func (f *fakeBackend) FetchStrategies(_ context.Context, account models.AccountID) ([]models.Strategy, error) {
	if v, ok, err := f.hook(account, models.DomainStrategies); ok {
		if err != nil {
			return nil, err
		}
		return v.([]models.Strategy), nil
	}
	return nil, nil
}

func (f *fakeBackend) InvalidateAccount(_ context.Context, account models.AccountID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, account)
	return nil
}

// fakeGateway records calls and answers from configurable stubs.
type fakeGateway struct {
	mu         sync.Mutex
	calls      []string
	tradeErr   error
	tradeHook  func(order models.TradeOrder) (models.TradeRecord, error)
	tradeRec   models.TradeRecord
	depositErr error
	summary    models.Summary
	modeErr    error
	profile    models.UserProfile
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (g *fakeGateway) record(name string) {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	g.mu.Unlock()
}

func (g *fakeGateway) ExecuteTrade(_ context.Context, _ models.AccountID, order models.TradeOrder) (models.TradeRecord, error) {
	g.record("trade")
	if g.tradeHook != nil {
		return g.tradeHook(order)
	}
	if g.tradeErr != nil {
		return models.TradeRecord{}, g.tradeErr
	}
	rec := g.tradeRec
	if rec.Symbol == "" {
		rec = models.TradeRecord{ID: "t1", Symbol: order.Symbol, Side: order.Side, Quantity: order.Quantity, Price: order.Price}
	}
	return rec, nil
}

func (g *fakeGateway) Deposit(_ context.Context, _ models.AccountID, amount decimal.Decimal) (models.Summary, error) {
	g.record("deposit")
	if g.depositErr != nil {
		return models.Summary{}, g.depositErr
	}
	g.mu.Lock()
	g.summary.CashBalance = g.summary.CashBalance.Add(amount)
	g.summary.BuyingPower = g.summary.BuyingPower.Add(amount)
	sum := g.summary
	g.mu.Unlock()
	return sum, nil
}

func (g *fakeGateway) Withdraw(_ context.Context, _ models.AccountID, amount decimal.Decimal) (models.Summary, error) {
	g.record("withdraw")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.summary.CashBalance.LessThan(amount) {
		return models.Summary{}, &models.InsufficientFundsError{Required: amount, Available: g.summary.CashBalance}
	}
	g.summary.CashBalance = g.summary.CashBalance.Sub(amount)
	g.summary.BuyingPower = g.summary.BuyingPower.Sub(amount)
	return g.summary, nil
}

func (g *fakeGateway) LaunchStrategy(_ context.Context, _ models.AccountID, name, riskBand string) (models.Strategy, error) {
	g.record("launch")
	return models.Strategy{ID: "s1", Name: name, RiskBand: riskBand, Status: "running"}, nil
}

func (g *fakeGateway) SetTradingMode(_ context.Context, _ models.AccountID, mode models.TradingMode) (models.UserProfile, error) {
	g.record("mode")
	if g.modeErr != nil {
		return models.UserProfile{}, g.modeErr
	}
	p := g.profile
	p.TradingMode = mode
	return p, nil
}

func (g *fakeGateway) UpdateUser(_ context.Context, _ models.AccountID, _ models.UpdateUserRequest) (models.UserProfile, error) {
	g.record("update_user")
	return g.profile, nil
}

// nopActivity drops events.
type nopActivity struct{}

func (nopActivity) Publish(context.Context, models.ActivityEvent) error { return nil }
func (nopActivity) Close() error                                        { return nil }

func clientScope(t *testing.T, self models.AccountID) *ScopeResolver {
	t.Helper()
	return NewScopeResolver(self, models.RoleClient, nopMetrics{}, testLogger(t))
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
