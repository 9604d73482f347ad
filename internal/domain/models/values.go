package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Domain value types. One struct per dashboard domain; instances stored in
// the aggregate snapshot are treated as immutable — a patch or mutation
// builds a replacement value, it never writes through a stored pointer.

// Summary is the account headline: balances and day performance.
type Summary struct {
	Account      AccountID       `json:"account"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	EquityValue  decimal.Decimal `json:"equity_value"`
	BuyingPower  decimal.Decimal `json:"buying_power"`
	DayPnL       decimal.Decimal `json:"day_pnl"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	TradingMode  TradingMode     `json:"trading_mode"`
	KYCStatus    string          `json:"kyc_status"` // NONE, PENDING, APPROVED, REJECTED
	SectorPolicy []string        `json:"sector_policy,omitempty"`
	AsOf         time.Time       `json:"as_of"`
}

// Holding is one position row.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	LastPrice     decimal.Decimal `json:"last_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// WatchlistEntry is one tracked symbol.
type WatchlistEntry struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	ChangePct decimal.Decimal `json:"change_pct"`
	AddedAt   time.Time       `json:"added_at"`
}

// TradeRecord is one executed or pending trade row.
type TradeRecord struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       TradeSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Status     string          `json:"status"` // "pending", "filled", "rejected"
	ExecutedAt time.Time       `json:"executed_at"`
}

// Mover is one gainer/loser row.
type Mover struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// MarketMovers groups the day's top movers.
type MarketMovers struct {
	Gainers []Mover `json:"gainers"`
	Losers  []Mover `json:"losers"`
}

// ExchangeStatus reflects the venue trading session.
type ExchangeStatus struct {
	State          string    `json:"state"` // "open", "closed", "halted"
	Session        string    `json:"session,omitempty"`
	NextTransition time.Time `json:"next_transition"`
}

// Prediction is a single steward model output.
type Prediction struct {
	Symbol      string          `json:"symbol"`
	Direction   string          `json:"direction"` // "up", "down", "flat"
	Confidence  float64         `json:"confidence"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Rationale   string          `json:"rationale,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// StewardPrediction is the push-fed prediction domain: the current output
// plus recent history.
type StewardPrediction struct {
	Current Prediction   `json:"prediction"`
	History []Prediction `json:"history"`
}

// ResearchNote is one market-research row.
type ResearchNote struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	Sentiment   string    `json:"sentiment"` // "bullish", "bearish", "neutral"
	PublishedAt time.Time `json:"published_at"`
}

// BookLevel is one price level: [price, size].
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook is the L2 view for the focused symbol.
type OrderBook struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	AsOf   time.Time   `json:"as_of"`
}

// MacroIndicator is one macro data point.
type MacroIndicator struct {
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Previous   decimal.Decimal `json:"previous"`
	Unit       string          `json:"unit,omitempty"`
	ReleasedAt time.Time       `json:"released_at"`
}

// Strategy is one launchable strategy row.
type Strategy struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RiskBand   string    `json:"risk_band"` // "conservative", "balanced", "aggressive"
	Status     string    `json:"status"`    // "available", "running", "stopped"
	LaunchedAt time.Time `json:"launched_at,omitempty"`
}

// TradeSide is the direction of an order.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradingMode gates whether the user or the steward places trades.
type TradingMode string

const (
	ModeAuto   TradingMode = "AUTO"
	ModeManual TradingMode = "MANUAL"
)
