package models

import "github.com/shopspring/decimal"

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.
// Money fields are decimals; positivity is enforced by the mutation coordinator
// so API and in-process callers get the same checks.

type TradeRequest struct {
	Symbol   string          `json:"symbol" validate:"required"`
	Side     string          `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (r TradeRequest) Order() TradeOrder {
	return TradeOrder{
		Symbol:   r.Symbol,
		Side:     TradeSide(r.Side),
		Quantity: r.Quantity,
		Price:    r.Price,
	}
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type LaunchStrategyRequest struct {
	Name     string `json:"name" validate:"required"`
	RiskBand string `json:"risk_band" default:"balanced" validate:"oneof=conservative balanced aggressive"`
}

type ToggleModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=AUTO MANUAL"`
}

type InspectRequest struct {
	Account string `json:"account" validate:"required"`
}

type WatchlistRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type RefreshRequest struct {
	Domains []string `json:"domains,omitempty"`
}

type DepositAndRetryRequest struct {
	MutationID string          `json:"mutation_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type KYCSubmitRequest struct {
	DocumentType string `json:"document_type" default:"passport" validate:"oneof=passport id_card driver_license"`
	DocumentRef  string `json:"document_ref" validate:"required"`
	Country      string `json:"country" validate:"required,len=2"`
}

// KYCReviewRequest carries the decision body; the reviewed account comes
// from the route path.
type KYCReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Note     string `json:"note"`
}

type SupportTicketRequest struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	Severity string `json:"severity" default:"normal" validate:"oneof=low normal high"`
}

type SupportTicketUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=OPEN IN_PROGRESS CLOSED"`
	Note   string `json:"note"`
}

type UpdateUserRequest struct {
	DisplayName  string   `json:"display_name"`
	SectorPolicy []string `json:"sector_policy"`
}
