package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MutationKind string

const (
	MutationTrade          MutationKind = "TRADE"
	MutationDeposit        MutationKind = "DEPOSIT"
	MutationWithdraw       MutationKind = "WITHDRAW"
	MutationLaunchStrategy MutationKind = "LAUNCH_STRATEGY"
	MutationToggleMode     MutationKind = "TOGGLE_MODE"
)

type MutationStatus string

const (
	MutationPending           MutationStatus = "PENDING"
	MutationConfirmed         MutationStatus = "CONFIRMED"
	MutationFailed            MutationStatus = "FAILED"
	MutationInsufficientFunds MutationStatus = "INSUFFICIENT_FUNDS"
)

func (s MutationStatus) Resolved() bool { return s != MutationPending }

// TradeOrder is the payload of a TRADE mutation and of basket entries.
type TradeOrder struct {
	Symbol   string          `json:"symbol"`
	Side     TradeSide       `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Cost is the cash required to execute the order (quantity * price).
func (o TradeOrder) Cost() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}

// OptimisticPatch is one mutation's forward patch: replacement values per
// domain, applied before server confirmation. Prior holds the domain states
// captured at apply time so a rollback restores them exactly.
type OptimisticPatch struct {
	Values map[Domain]any
	Prior  map[Domain]DomainState
}

// PendingMutation tracks one state-changing operation from submission to
// resolution. A mutation resolved as INSUFFICIENT_FUNDS is retained so the
// caller can remediate (deposit the shortfall) and retry it by ID.
type PendingMutation struct {
	ID         string           `json:"id"`
	Kind       MutationKind     `json:"kind"`
	Payload    any              `json:"payload"`
	Patch      *OptimisticPatch `json:"-"`
	Status     MutationStatus   `json:"status"`
	Shortfall  decimal.Decimal  `json:"shortfall"`
	Err        string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

func NewPendingMutation(kind MutationKind, payload any) *PendingMutation {
	return &PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Status:    MutationPending,
		CreatedAt: time.Now(),
	}
}
