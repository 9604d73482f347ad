package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"DeskSync/internal/domain/models"
)

type coordFixture struct {
	backend *fakeBackend
	gateway *fakeGateway
	scopes  *ScopeResolver
	store   *AggregateStore
	coord   *MutationCoordinator
}

func newCoordFixture(t *testing.T, mode models.TradingMode) *coordFixture {
	t.Helper()
	backend := newFakeBackend()
	backend.summaries["acct-1"] = models.Summary{CashBalance: dec("1000"), BuyingPower: dec("1000")}
	backend.holdings["acct-1"] = []models.Holding{
		{Symbol: "AAPL", Quantity: dec("10"), AvgCost: dec("100"), LastPrice: dec("110"), MarketValue: dec("1100")},
	}

	scopes := clientScope(t, "acct-1")
	store := newTestStore(t, backend, scopes)
	store.Refresh(context.Background(), models.DomainSummary, models.DomainHoldings)

	gateway := &fakeGateway{summary: backend.summaries["acct-1"]}
	coord := NewMutationCoordinator(gateway, store, scopes, nopActivity{}, nopMetrics{}, testLogger(t), mode,
		WithRefresh(func() {}))
	return &coordFixture{backend: backend, gateway: gateway, scopes: scopes, store: store, coord: coord}
}

func TestDepositConfirmedUpdatesSnapshot(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.Deposit(context.Background(), dec("250"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if mut.Status != models.MutationConfirmed {
		t.Fatalf("expected CONFIRMED, got %s (%s)", mut.Status, mut.Err)
	}

	sum, ok := fx.store.Snapshot().SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("1250")) {
		t.Fatalf("unexpected balance %+v", sum)
	}
}

func TestTradeValidationRejectedBeforeNetwork(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	_, err := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "AAPL", Side: "BUY", Quantity: dec("-1"), Price: dec("100"),
	})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if n := fx.gateway.count("trade"); n != 0 {
		t.Fatalf("gateway reached on invalid order: %d calls", n)
	}
}

func TestTradeRejectedInAutoMode(t *testing.T) {
	fx := newCoordFixture(t, models.ModeAuto)

	_, err := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "AAPL", Side: "BUY", Quantity: dec("1"), Price: dec("100"),
	})
	var merr *models.ModeRestrictedError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ModeRestrictedError, got %v", err)
	}
	if n := fx.gateway.count("trade"); n != 0 {
		t.Fatalf("gateway reached while AUTO: %d calls", n)
	}
}

// A failed mutation must leave the snapshot exactly as it was before the
// optimistic patch.
func TestTradeFailureRollsBackExactly(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)
	fx.gateway.tradeErr = fmt.Errorf("order gateway timeout")

	before := fx.store.Snapshot()

	mut, err := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "AAPL", Side: "BUY", Quantity: dec("5"), Price: dec("100"),
	})
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if mut.Status != models.MutationFailed {
		t.Fatalf("expected FAILED, got %s", mut.Status)
	}

	after := fx.store.Snapshot()
	if !reflect.DeepEqual(before.Domains, after.Domains) {
		t.Fatalf("rollback not exact:\nbefore %+v\nafter  %+v",
			before.Domains[models.DomainSummary], after.Domains[models.DomainSummary])
	}
}

// A trade queued behind an in-flight balance mutation must compute its
// optimistic patch from the settled snapshot, not from the predecessor's
// optimistic state. If the first trade rolls back, a patch captured before
// the lock would compound the discarded debit.
func TestQueuedTradePatchSeesRolledBackState(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	entered := make(chan struct{})
	release := make(chan struct{})
	fx.gateway.tradeHook = func(order models.TradeOrder) (models.TradeRecord, error) {
		if order.Symbol == "AAPL" {
			close(entered)
			<-release
			return models.TradeRecord{}, fmt.Errorf("order gateway timeout")
		}
		return models.TradeRecord{ID: "t2", Symbol: order.Symbol, Side: order.Side, Quantity: order.Quantity, Price: order.Price}, nil
	}

	firstDone := make(chan *models.PendingMutation)
	go func() {
		mut, _ := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
			Symbol: "AAPL", Side: "BUY", Quantity: dec("3"), Price: dec("100"),
		})
		firstDone <- mut
	}()
	<-entered

	// the first trade's optimistic debit is visible while it waits on the
	// backend
	if sum, _ := fx.store.Snapshot().SummaryValue(); !sum.CashBalance.Equal(dec("700")) {
		t.Fatalf("expected optimistic 700 while in flight, got %s", sum.CashBalance)
	}

	secondDone := make(chan *models.PendingMutation)
	go func() {
		mut, _ := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
			Symbol: "MSFT", Side: "BUY", Quantity: dec("3"), Price: dec("100"),
		})
		secondDone <- mut
	}()

	// give the second trade time to queue on the lock before the first fails
	time.Sleep(20 * time.Millisecond)
	close(release)

	if first := <-firstDone; first.Status != models.MutationFailed {
		t.Fatalf("expected first trade FAILED, got %s", first.Status)
	}
	if second := <-secondDone; second.Status != models.MutationConfirmed {
		t.Fatalf("expected second trade CONFIRMED, got %s (%s)", second.Status, second.Err)
	}

	sum, _ := fx.store.Snapshot().SummaryValue()
	if !sum.CashBalance.Equal(dec("700")) {
		t.Fatalf("queued trade compounded a rolled-back patch: cash=%s (want 700)", sum.CashBalance)
	}
}

func TestWithdrawInsufficientFundsRetained(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	before := fx.store.Snapshot()

	mut, err := fx.coord.Withdraw(context.Background(), dec("1500"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if mut.Status != models.MutationInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %s (%s)", mut.Status, mut.Err)
	}
	if !mut.Shortfall.Equal(dec("500")) {
		t.Fatalf("expected shortfall 500, got %s", mut.Shortfall)
	}

	// the optimistic debit was rolled back
	after := fx.store.Snapshot()
	if !reflect.DeepEqual(before.Domains, after.Domains) {
		t.Fatalf("insufficient-funds rollback not exact")
	}

	// retained for remediation
	if fx.coord.Get(mut.ID) == nil {
		t.Fatalf("mutation not retained")
	}
}

func TestDepositAndRetryResubmitsOnce(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.Withdraw(context.Background(), dec("1500"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if mut.Status != models.MutationInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %s", mut.Status)
	}

	retry, err := fx.coord.DepositAndRetry(context.Background(), mut.ID, mut.Shortfall)
	if err != nil {
		t.Fatalf("remediate: %v", err)
	}
	if retry.Status != models.MutationConfirmed {
		t.Fatalf("expected retry CONFIRMED, got %s (%s)", retry.Status, retry.Err)
	}

	sum, ok := fx.store.Snapshot().SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("0")) {
		t.Fatalf("expected balance 0 after deposit+withdraw, got %+v", sum)
	}

	// consumed: a second remediation must refuse
	if _, err := fx.coord.DepositAndRetry(context.Background(), mut.ID, dec("1")); !errors.Is(err, ErrMutationNotFound) {
		t.Fatalf("expected ErrMutationNotFound on reuse, got %v", err)
	}
}

// The mode gate covers the remediation entry point too: a retained trade
// must not execute if the user switched to AUTO between the failure and the
// retry.
func TestDepositAndRetryGatedInAutoMode(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)
	fx.gateway.tradeHook = func(models.TradeOrder) (models.TradeRecord, error) {
		return models.TradeRecord{}, &models.InsufficientFundsError{Required: dec("1500"), Available: dec("1000")}
	}

	mut, err := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "AAPL", Side: "BUY", Quantity: dec("15"), Price: dec("100"),
	})
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if mut.Status != models.MutationInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %s", mut.Status)
	}

	if _, err := fx.coord.ToggleMode(context.Background(), models.ModeAuto); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	_, err = fx.coord.DepositAndRetry(context.Background(), mut.ID, mut.Shortfall)
	var merr *models.ModeRestrictedError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ModeRestrictedError, got %v", err)
	}
	if n := fx.gateway.count("deposit"); n != 0 {
		t.Fatalf("remediation deposit ran while AUTO: %d calls", n)
	}
	if fx.coord.Get(mut.ID) == nil {
		t.Fatalf("retained mutation consumed by a gated remediation")
	}
}

// A failed remediation deposit must leave the retained mutation in place so
// the caller can remediate again.
func TestDepositAndRetryFailedDepositKeepsRetained(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.Withdraw(context.Background(), dec("1500"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if mut.Status != models.MutationInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %s", mut.Status)
	}

	fx.gateway.depositErr = fmt.Errorf("funding endpoint down")
	dep, err := fx.coord.DepositAndRetry(context.Background(), mut.ID, mut.Shortfall)
	if err != nil {
		t.Fatalf("remediate: %v", err)
	}
	if dep.Status != models.MutationFailed {
		t.Fatalf("expected deposit FAILED, got %s", dep.Status)
	}
	if fx.coord.Get(mut.ID) == nil {
		t.Fatalf("failed deposit destroyed the retry path")
	}

	fx.gateway.depositErr = nil
	retry, err := fx.coord.DepositAndRetry(context.Background(), mut.ID, mut.Shortfall)
	if err != nil {
		t.Fatalf("second remediation: %v", err)
	}
	if retry.Status != models.MutationConfirmed {
		t.Fatalf("expected retry CONFIRMED, got %s (%s)", retry.Status, retry.Err)
	}
}

func TestDepositAndRetryUnknownID(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)
	if _, err := fx.coord.DepositAndRetry(context.Background(), "nope", dec("10")); !errors.Is(err, ErrMutationNotFound) {
		t.Fatalf("expected ErrMutationNotFound, got %v", err)
	}
}

func TestToggleModeGatesImmediately(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.ToggleMode(context.Background(), models.ModeAuto)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if mut.Status != models.MutationConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", mut.Status)
	}
	if fx.coord.Mode() != models.ModeAuto {
		t.Fatalf("mode gate not flipped")
	}

	_, err = fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "AAPL", Side: "BUY", Quantity: dec("1"), Price: dec("1"),
	})
	var merr *models.ModeRestrictedError
	if !errors.As(err, &merr) {
		t.Fatalf("trade after AUTO toggle should be gated, got %v", err)
	}
}

func TestToggleModeFailureRestoresGate(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)
	fx.gateway.modeErr = fmt.Errorf("mode endpoint down")

	mut, err := fx.coord.ToggleMode(context.Background(), models.ModeAuto)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if mut.Status != models.MutationFailed {
		t.Fatalf("expected FAILED, got %s", mut.Status)
	}
	if fx.coord.Mode() != models.ModeManual {
		t.Fatalf("gate left flipped after failed toggle")
	}
}

func TestToggleModeSameModeIsNoop(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.ToggleMode(context.Background(), models.ModeManual)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if mut.Status != models.MutationConfirmed {
		t.Fatalf("expected local CONFIRMED, got %s", mut.Status)
	}
	if n := fx.gateway.count("mode"); n != 0 {
		t.Fatalf("no-op toggle reached the backend: %d calls", n)
	}
}

func TestTradeConfirmedAppliesHoldings(t *testing.T) {
	fx := newCoordFixture(t, models.ModeManual)

	mut, err := fx.coord.ExecuteTrade(context.Background(), models.TradeRequest{
		Symbol: "MSFT", Side: "BUY", Quantity: dec("2"), Price: dec("200"),
	})
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if mut.Status != models.MutationConfirmed {
		t.Fatalf("expected CONFIRMED, got %s (%s)", mut.Status, mut.Err)
	}

	snap := fx.store.Snapshot()
	sum, _ := snap.SummaryValue()
	if !sum.CashBalance.Equal(dec("600")) {
		t.Fatalf("expected optimistic debit 1000-400=600, got %s", sum.CashBalance)
	}
	holdings, _ := snap.HoldingsValue()
	found := false
	for _, h := range holdings {
		if h.Symbol == "MSFT" && h.Quantity.Equal(dec("2")) {
			found = true
		}
	}
	if !found {
		t.Fatalf("new position missing from holdings %+v", holdings)
	}
	trades, ok := snap.Domains[models.DomainTrades].Value.([]models.TradeRecord)
	if !ok || len(trades) == 0 || trades[0].Symbol != "MSFT" {
		t.Fatalf("confirmed trade not merged into trades domain: %+v", trades)
	}
}
