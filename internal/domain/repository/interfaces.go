package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"DeskSync/internal/domain/models"
)

// Backend is the read side of the trading backend. Fetches are idempotent and
// side-effect-free; retry policy belongs to the caller. Market-wide domains
// ignore the account argument their caller resolved.
type Backend interface {
	FetchSummary(ctx context.Context, account models.AccountID) (models.Summary, error)
	FetchHoldings(ctx context.Context, account models.AccountID) ([]models.Holding, error)
	FetchWatchlist(ctx context.Context, account models.AccountID) ([]models.WatchlistEntry, error)
	FetchTrades(ctx context.Context, account models.AccountID) ([]models.TradeRecord, error)
	FetchMarketMovers(ctx context.Context) (models.MarketMovers, error)
	FetchExchangeStatus(ctx context.Context) (models.ExchangeStatus, error)
	FetchStewardPrediction(ctx context.Context, account models.AccountID) (models.StewardPrediction, error)
	FetchMarketResearch(ctx context.Context) ([]models.ResearchNote, error)
	FetchOrderBook(ctx context.Context, account models.AccountID) (models.OrderBook, error)
	FetchMacroIndicators(ctx context.Context) ([]models.MacroIndicator, error)
	FetchStrategies(ctx context.Context, account models.AccountID) ([]models.Strategy, error)

	// InvalidateAccount drops any cached responses held for the account so the
	// next fetch goes to the origin. Called on scope changes and after mutations.
	InvalidateAccount(ctx context.Context, account models.AccountID) error
}

// MutationGateway is the write side of the trading backend.
type MutationGateway interface {
	ExecuteTrade(ctx context.Context, account models.AccountID, order models.TradeOrder) (models.TradeRecord, error)
	Deposit(ctx context.Context, account models.AccountID, amount decimal.Decimal) (models.Summary, error)
	Withdraw(ctx context.Context, account models.AccountID, amount decimal.Decimal) (models.Summary, error)
	LaunchStrategy(ctx context.Context, account models.AccountID, name, riskBand string) (models.Strategy, error)
	SetTradingMode(ctx context.Context, account models.AccountID, mode models.TradingMode) (models.UserProfile, error)
	UpdateUser(ctx context.Context, account models.AccountID, update models.UpdateUserRequest) (models.UserProfile, error)
}

// ComplianceGateway covers KYC review and support tickets.
type ComplianceGateway interface {
	SubmitKYC(ctx context.Context, account models.AccountID, sub models.KYCSubmitRequest) (models.KYCRecord, error)
	PendingKYC(ctx context.Context) ([]models.KYCRecord, error)
	ReviewKYC(ctx context.Context, account models.AccountID, decision, note string) (models.KYCRecord, error)

	CreateTicket(ctx context.Context, account models.AccountID, req models.SupportTicketRequest) (models.SupportTicket, error)
	ListTickets(ctx context.Context, account models.AccountID) ([]models.SupportTicket, error)
	UpdateTicket(ctx context.Context, account models.AccountID, id string, req models.SupportTicketUpdateRequest) (models.SupportTicket, error)
	DeleteTicket(ctx context.Context, account models.AccountID, id string) error
}

// AccountDirectory resolves account profiles for scope decisions.
type AccountDirectory interface {
	GetProfile(ctx context.Context, account models.AccountID) (models.UserProfile, error)
	ListAccounts(ctx context.Context) ([]models.UserProfile, error)
}

// EventHandler receives one push event. Handlers for a topic are invoked in
// delivery order; a slow handler delays the topic, it is never reordered.
type EventHandler func(topic string, payload []byte)

// EventStream is the persistent push-event connection.
type EventStream interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, handler EventHandler) (func(), error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ActivityPublisher exports audit events for resolved mutations and scope
// changes.
type ActivityPublisher interface {
	Publish(ctx context.Context, ev models.ActivityEvent) error
	Close() error
}

type Metrics interface {
	RecordFetch(domain, result string, seconds float64)
	RecordStaleDrop(domain string)
	RecordPatch(topic string)
	RecordMutation(kind, status string, seconds float64)
	RecordRefreshCycle(seconds float64)
	RecordScopeSwitch()
	SetActiveSessions(n int)
}
