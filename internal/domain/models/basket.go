package models

import (
	"time"

	"github.com/google/uuid"
)

type BasketEntryStatus string

const (
	BasketEntryExecuted     BasketEntryStatus = "EXECUTED"
	BasketEntryFailed       BasketEntryStatus = "FAILED"
	BasketEntryNotAttempted BasketEntryStatus = "NOT_ATTEMPTED"
)

// BasketEntry is one draft order queued for batched submission.
type BasketEntry struct {
	ID      string     `json:"id"`
	Order   TradeOrder `json:"order"`
	AddedAt time.Time  `json:"added_at"`
}

func NewBasketEntry(order TradeOrder) BasketEntry {
	return BasketEntry{ID: uuid.NewString(), Order: order, AddedAt: time.Now()}
}

// BasketEntryResult reports the outcome of one entry of a batch submission.
type BasketEntryResult struct {
	EntryID string            `json:"entry_id"`
	Symbol  string            `json:"symbol"`
	Status  BasketEntryStatus `json:"status"`
	Err     string            `json:"error,omitempty"`
}

// BasketOutcome reports a batch submission entry by entry. Cleared is true
// only when every entry executed and the basket was emptied.
type BasketOutcome struct {
	Results []BasketEntryResult `json:"results"`
	Cleared bool                `json:"cleared"`
}
