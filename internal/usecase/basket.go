package usecase

import (
	"context"
	"sync"

	"DeskSync/internal/domain/models"
	"DeskSync/pkg/logger"
)

// Basket accumulates draft orders for one session and submits them as a
// sequential batch through the mutation coordinator. A batch is never
// all-or-nothing: every entry gets an individual outcome, and the basket is
// cleared only when all of them execute.
type Basket struct {
	coord  *MutationCoordinator
	logger *logger.Logger

	mu      sync.Mutex
	entries []models.BasketEntry
}

// NewBasket creates an empty basket bound to the session's coordinator.
func NewBasket(coord *MutationCoordinator, lgr *logger.Logger) *Basket {
	return &Basket{coord: coord, logger: lgr}
}

// Add validates and queues one draft order.
func (b *Basket) Add(order models.TradeOrder) (models.BasketEntry, error) {
	if err := validateOrder(order); err != nil {
		return models.BasketEntry{}, err
	}

	entry := models.NewBasketEntry(order)
	b.mu.Lock()
	b.entries = append(b.entries, entry)
	b.mu.Unlock()
	return entry, nil
}

// Remove drops one entry by id.
func (b *Basket) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear cancels the whole draft.
func (b *Basket) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Entries returns a copy of the queued drafts in order.
func (b *Basket) Entries() []models.BasketEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.BasketEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Execute submits the queued entries in order. Every entry is attempted and
// reported individually; a failure partway does not stop the rest and does
// not clear the basket, so the caller can fix and resubmit what failed.
func (b *Basket) Execute(ctx context.Context) (models.BasketOutcome, error) {
	if err := b.coord.gateMode(); err != nil {
		return models.BasketOutcome{}, err
	}

	entries := b.Entries()
	outcome := models.BasketOutcome{
		Results: make([]models.BasketEntryResult, 0, len(entries)),
	}

	allOK := true
	for _, e := range entries {
		res := models.BasketEntryResult{EntryID: e.ID, Symbol: e.Order.Symbol}

		mut, err := b.coord.runBalanceMutation(ctx, models.MutationTrade, e.Order,
			func() map[models.Domain]any { return b.coord.tradePatch(e.Order) },
			func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error) {
				rec, err := b.coord.gateway.ExecuteTrade(ctx, account, e.Order)
				if err != nil {
					return nil, err
				}
				return b.coord.confirmTrade(rec), nil
			})

		switch {
		case err != nil:
			res.Status = models.BasketEntryFailed
			res.Err = err.Error()
		case mut.Status == models.MutationConfirmed:
			res.Status = models.BasketEntryExecuted
		default:
			res.Status = models.BasketEntryFailed
			res.Err = mut.Err
		}
		if res.Status != models.BasketEntryExecuted {
			allOK = false
			b.logger.Warn("basket: entry failed",
				logger.String("entry", e.ID),
				logger.String("symbol", e.Order.Symbol),
				logger.String("reason", res.Err))
		}
		outcome.Results = append(outcome.Results, res)
	}

	if allOK && len(entries) > 0 {
		b.mu.Lock()
		// clear only the executed drafts; entries added mid-flight stay queued
		kept := b.entries[:0]
		executed := make(map[string]bool, len(entries))
		for _, e := range entries {
			executed[e.ID] = true
		}
		for _, e := range b.entries {
			if !executed[e.ID] {
				kept = append(kept, e)
			}
		}
		b.entries = kept
		b.mu.Unlock()
		outcome.Cleared = true
	}

	return outcome, nil
}
