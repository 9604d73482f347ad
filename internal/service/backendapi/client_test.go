package backendapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"DeskSync/internal/domain/models"
	"DeskSync/pkg/cache"
	"DeskSync/pkg/config"
	"DeskSync/pkg/logger"

	"github.com/shopspring/decimal"
)

func testClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := &config.Config{}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.APIKey = "test-key"
	cfg.Backend.Timeout = 2 * time.Second
	return New(cfg, lgr, opts...)
}

func TestFetchSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash_balance":"1234.56","trading_mode":"MANUAL"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	sum, err := c.FetchSummary(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !sum.CashBalance.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("unexpected balance %s", sum.CashBalance)
	}
	if sum.TradingMode != models.ModeManual {
		t.Fatalf("unexpected mode %s", sum.TradingMode)
	}
}

func TestFetchErrorCarriesDomainAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchHoldings(context.Background(), "acct-1")
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Domain != models.DomainHoldings {
		t.Fatalf("unexpected domain %s", fe.Domain)
	}
	if fe.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", fe.Status)
	}
}

func TestCachedFetchServedWithoutSecondRoundTrip(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte(`{"cash_balance":"10"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, WithCache(cache.NewMemoryCache(), time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := c.FetchSummary(context.Background(), "acct-1"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected one origin hit, got %d", hits)
	}
}

func TestInvalidateAccountDropsCachedEntries(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte(`{"cash_balance":"10"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, WithCache(cache.NewMemoryCache(), time.Minute))
	if _, err := c.FetchSummary(context.Background(), "acct-1"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := c.InvalidateAccount(context.Background(), "acct-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.FetchSummary(context.Background(), "acct-1"); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 2 {
		t.Fatalf("expected origin hit after invalidation, got %d hits", hits)
	}
}

func TestWithdrawInsufficientFundsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/funds/withdraw" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"code":"INSUFFICIENT_FUNDS","required":"1500","available":"1000"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Withdraw(context.Background(), "acct-1", decimal.RequireFromString("1500"))
	var ife *models.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !ife.Shortfall().Equal(decimal.RequireFromString("500")) {
		t.Fatalf("unexpected shortfall %s", ife.Shortfall())
	}
}

func TestMutationRejectionWithoutEnvelopeStaysGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Withdraw(context.Background(), "acct-1", decimal.RequireFromString("5"))
	if err == nil {
		t.Fatalf("expected error")
	}
	var ife *models.InsufficientFundsError
	if errors.As(err, &ife) {
		t.Fatalf("500 must not map to insufficient funds")
	}
}
