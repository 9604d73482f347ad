package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"DeskSync/internal/domain/models"
)

func newBasketFixture(t *testing.T, mode models.TradingMode) (*coordFixture, *Basket) {
	t.Helper()
	fx := newCoordFixture(t, mode)
	return fx, NewBasket(fx.coord, testLogger(t))
}

func TestBasketAddValidates(t *testing.T) {
	_, basket := newBasketFixture(t, models.ModeManual)

	if _, err := basket.Add(models.TradeOrder{Symbol: "", Quantity: dec("1"), Price: dec("1")}); err == nil {
		t.Fatalf("expected validation failure for empty symbol")
	}
	if _, err := basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("0"), Price: dec("1")}); err == nil {
		t.Fatalf("expected validation failure for zero quantity")
	}

	entry, err := basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("entry id not assigned")
	}
	if got := len(basket.Entries()); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
}

func TestBasketRemove(t *testing.T) {
	_, basket := newBasketFixture(t, models.ModeManual)

	entry, _ := basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})
	if !basket.Remove(entry.ID) {
		t.Fatalf("remove known entry failed")
	}
	if basket.Remove("missing") {
		t.Fatalf("remove unknown entry succeeded")
	}
	if got := len(basket.Entries()); got != 0 {
		t.Fatalf("expected empty basket, got %d", got)
	}
}

func TestBasketExecuteGatedInAutoMode(t *testing.T) {
	fx, basket := newBasketFixture(t, models.ModeAuto)
	basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})

	_, err := basket.Execute(context.Background())
	var merr *models.ModeRestrictedError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ModeRestrictedError, got %v", err)
	}
	if n := fx.gateway.count("trade"); n != 0 {
		t.Fatalf("gateway reached while AUTO: %d calls", n)
	}
	if got := len(basket.Entries()); got != 1 {
		t.Fatalf("gated execute must keep the basket, got %d entries", got)
	}
}

func TestBasketExecuteAllConfirmedClears(t *testing.T) {
	fx, basket := newBasketFixture(t, models.ModeManual)
	basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})
	basket.Add(models.TradeOrder{Symbol: "MSFT", Side: models.SideBuy, Quantity: dec("2"), Price: dec("20")})

	outcome, err := basket.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.Cleared {
		t.Fatalf("expected basket cleared")
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(outcome.Results))
	}
	for _, res := range outcome.Results {
		if res.Status != models.BasketEntryExecuted {
			t.Fatalf("entry %s not executed: %s", res.Symbol, res.Err)
		}
	}
	if n := fx.gateway.count("trade"); n != 2 {
		t.Fatalf("expected 2 gateway calls, got %d", n)
	}
	if got := len(basket.Entries()); got != 0 {
		t.Fatalf("basket not cleared, %d entries left", got)
	}
}

// A failure partway through a batch must not stop the remaining entries and
// must keep the basket for resubmission.
func TestBasketExecutePartialFailure(t *testing.T) {
	fx, basket := newBasketFixture(t, models.ModeManual)
	basket.Add(models.TradeOrder{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})
	basket.Add(models.TradeOrder{Symbol: "FAIL", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})
	basket.Add(models.TradeOrder{Symbol: "MSFT", Side: models.SideBuy, Quantity: dec("1"), Price: dec("10")})

	fx.gateway.tradeHook = func(order models.TradeOrder) (models.TradeRecord, error) {
		if order.Symbol == "FAIL" {
			return models.TradeRecord{}, fmt.Errorf("symbol halted")
		}
		return models.TradeRecord{ID: "t-" + order.Symbol, Symbol: order.Symbol, Side: order.Side,
			Quantity: order.Quantity, Price: order.Price}, nil
	}

	outcome, err := basket.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Cleared {
		t.Fatalf("basket cleared despite a failed entry")
	}
	if len(outcome.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(outcome.Results))
	}
	statuses := map[string]models.BasketEntryStatus{}
	for _, res := range outcome.Results {
		statuses[res.Symbol] = res.Status
	}
	if statuses["AAPL"] != models.BasketEntryExecuted || statuses["MSFT"] != models.BasketEntryExecuted {
		t.Fatalf("entries after the failure were not attempted: %+v", statuses)
	}
	if statuses["FAIL"] != models.BasketEntryFailed {
		t.Fatalf("failed entry not reported: %+v", statuses)
	}
	if n := fx.gateway.count("trade"); n != 3 {
		t.Fatalf("expected all 3 entries attempted, got %d", n)
	}
	if got := len(basket.Entries()); got != 3 {
		t.Fatalf("partial failure must keep the basket, got %d entries", got)
	}
}
