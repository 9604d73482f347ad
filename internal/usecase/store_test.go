package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"DeskSync/internal/domain/models"
)

func newTestStore(t *testing.T, backend *fakeBackend, scopes *ScopeResolver) *AggregateStore {
	t.Helper()
	return NewAggregateStore(backend, scopes, nopMetrics{}, testLogger(t), time.Second)
}

func TestStoreRefreshPopulatesDomains(t *testing.T) {
	backend := newFakeBackend()
	backend.summaries["acct-1"] = models.Summary{CashBalance: dec("1000")}
	backend.holdings["acct-1"] = []models.Holding{{Symbol: "AAPL", Quantity: dec("3")}}

	store := newTestStore(t, backend, clientScope(t, "acct-1"))
	store.Refresh(context.Background(), models.DomainSummary, models.DomainHoldings)

	snap := store.Snapshot()
	sum, ok := snap.SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("1000")) {
		t.Fatalf("unexpected summary %+v", snap.State(models.DomainSummary))
	}
	holdings, ok := snap.HoldingsValue()
	if !ok || len(holdings) != 1 || holdings[0].Symbol != "AAPL" {
		t.Fatalf("unexpected holdings %+v", holdings)
	}
	st := snap.State(models.DomainSummary)
	if !st.Fresh || st.Loading || st.Err != "" {
		t.Fatalf("unexpected summary state %+v", st)
	}
}

func TestStoreFetchFailureRetainsLastValue(t *testing.T) {
	backend := newFakeBackend()
	backend.summaries["acct-1"] = models.Summary{CashBalance: dec("500")}

	store := newTestStore(t, backend, clientScope(t, "acct-1"))
	store.Refresh(context.Background(), models.DomainSummary)

	backend.mu.Lock()
	backend.fetchHook = func(models.AccountID, models.Domain) (any, error) {
		return nil, fmt.Errorf("backend down")
	}
	backend.mu.Unlock()

	store.Refresh(context.Background(), models.DomainSummary)

	snap := store.Snapshot()
	sum, ok := snap.SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("500")) {
		t.Fatalf("failed fetch should keep the last value, got %+v", sum)
	}
	st := snap.State(models.DomainSummary)
	if st.Fresh {
		t.Fatalf("expected degraded freshness")
	}
	if st.Err == "" {
		t.Fatalf("expected fetch error recorded")
	}
}

func TestStorePartialFailureIsolatedPerDomain(t *testing.T) {
	backend := newFakeBackend()
	backend.summaries["acct-1"] = models.Summary{CashBalance: dec("100")}
	backend.mu.Lock()
	backend.fetchHook = func(_ models.AccountID, d models.Domain) (any, error) {
		if d == models.DomainHoldings {
			return nil, fmt.Errorf("holdings upstream 500")
		}
		return nil, nil
	}
	backend.mu.Unlock()

	store := newTestStore(t, backend, clientScope(t, "acct-1"))
	store.RefreshAll(context.Background())

	snap := store.Snapshot()
	if st := snap.State(models.DomainHoldings); st.Fresh {
		t.Fatalf("holdings should be degraded")
	}
	if st := snap.State(models.DomainSummary); !st.Fresh {
		t.Fatalf("summary should be fresh despite holdings failure: %+v", st)
	}
}

// A response from an earlier issuance must never overwrite one from a later
// issuance, regardless of arrival order.
func TestStoreStaleResponseDiscarded(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	backend.mu.Lock()
	backend.fetchHook = func(_ models.AccountID, d models.Domain) (any, error) {
		if d != models.DomainSummary {
			return nil, nil
		}
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			// first issuance stalls until the second one has settled
			<-release
			return models.Summary{CashBalance: dec("1")}, nil
		}
		return models.Summary{CashBalance: dec("2")}, nil
	}
	backend.mu.Unlock()

	store := newTestStore(t, backend, clientScope(t, "acct-1"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Refresh(context.Background(), models.DomainSummary)
	}()

	// wait for the first fetch to be in flight
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	store.Refresh(context.Background(), models.DomainSummary)
	close(release)
	wg.Wait()

	sum, ok := store.Snapshot().SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("2")) {
		t.Fatalf("stale first response overwrote the fresher one: %+v", sum)
	}
}

// A late response issued under a previous scope must never render after an
// inspection switch.
func TestStoreLateResponseFromOldScopeDiscarded(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	backend.mu.Lock()
	backend.fetchHook = func(account models.AccountID, d models.Domain) (any, error) {
		if d != models.DomainSummary {
			return nil, nil
		}
		if account == "acct-1" {
			once.Do(func() { close(started) })
			<-release
			return models.Summary{CashBalance: dec("111")}, nil
		}
		return models.Summary{CashBalance: dec("222")}, nil
	}
	backend.mu.Unlock()

	scopes := NewScopeResolver("acct-1", models.RoleCompliance, nopMetrics{}, testLogger(t))
	store := newTestStore(t, backend, scopes)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Refresh(context.Background(), models.DomainSummary)
	}()
	<-started

	if err := scopes.SetInspected("acct-2"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	store.Refresh(context.Background(), models.DomainSummary)

	close(release)
	wg.Wait()

	snap := store.Snapshot()
	if snap.Scope.ActiveAccount() != "acct-2" {
		t.Fatalf("unexpected scope %s", snap.Scope.ActiveAccount())
	}
	sum, ok := snap.SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("222")) {
		t.Fatalf("old scope's late response leaked into the snapshot: %+v", sum)
	}
}

func TestStoreInvalidateResetsSnapshot(t *testing.T) {
	backend := newFakeBackend()
	backend.summaries["acct-1"] = models.Summary{CashBalance: dec("900")}

	scopes := NewScopeResolver("acct-1", models.RoleAdmin, nopMetrics{}, testLogger(t))
	store := newTestStore(t, backend, scopes)
	store.Refresh(context.Background(), models.DomainSummary)

	if err := scopes.SetInspected("acct-2"); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	// synchronously after the switch, no acct-1 data remains
	snap := store.Snapshot()
	if _, ok := snap.SummaryValue(); ok {
		t.Fatalf("snapshot kept stale cross-account data")
	}
	if snap.Scope.ActiveAccount() != "acct-2" {
		t.Fatalf("snapshot scope not updated: %s", snap.Scope.ActiveAccount())
	}

	// the backend cache was told to drop the old account
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.invalidated) == 0 {
		t.Fatalf("backend invalidate never called")
	}
}

func TestStoreApplyPatchSupersedesInFlightFetch(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	backend.mu.Lock()
	backend.fetchHook = func(_ models.AccountID, d models.Domain) (any, error) {
		if d != models.DomainSummary {
			return nil, nil
		}
		once.Do(func() { close(started) })
		<-release
		return models.Summary{CashBalance: dec("10")}, nil
	}
	backend.mu.Unlock()

	store := newTestStore(t, backend, clientScope(t, "acct-1"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Refresh(context.Background(), models.DomainSummary)
	}()
	<-started

	store.ApplyPatch(models.DomainSummary, models.Summary{CashBalance: dec("99")})
	close(release)
	wg.Wait()

	sum, ok := store.Snapshot().SummaryValue()
	if !ok || !sum.CashBalance.Equal(dec("99")) {
		t.Fatalf("fetch issued before the patch overwrote it: %+v", sum)
	}
}
