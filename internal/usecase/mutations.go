package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	"DeskSync/pkg/cache"
	"DeskSync/pkg/logger"
)

// ErrMutationBusy is returned when another replica holds the balance lock for
// the account past the acquisition timeout.
var ErrMutationBusy = errors.New("another mutation is pending for this account")

// ErrMutationNotFound is returned by remediation for an unknown mutation id.
var ErrMutationNotFound = errors.New("mutation not found or already resolved")

// MutationCoordinator executes state-changing operations for one session with
// a uniform contract: validate locally, apply an optimistic patch to the
// store, call the backend, then either merge the confirmed values and refresh
// or roll the patch back exactly. Balance-affecting mutations are serialized
// per account so overlapping optimistic patches cannot compound.
type MutationCoordinator struct {
	gateway  drepo.MutationGateway
	store    *AggregateStore
	scopes   *ScopeResolver
	activity drepo.ActivityPublisher
	metrics  drepo.Metrics
	logger   *logger.Logger
	validate *validator.Validate

	// locker is the cross-replica balance lock; nil for single-replica runs.
	locker  cache.Service
	lockTTL time.Duration

	// refresh runs after a confirmed mutation to pick up every
	// downstream-affected domain.
	refresh func()

	balanceMu sync.Mutex

	mu       sync.Mutex
	mode     models.TradingMode
	retained map[string]*models.PendingMutation
}

// CoordinatorOption configures MutationCoordinator.
type CoordinatorOption func(*MutationCoordinator)

// WithBalanceLock enables the cross-replica per-account lock.
func WithBalanceLock(c cache.Service, ttl time.Duration) CoordinatorOption {
	return func(m *MutationCoordinator) {
		m.locker = c
		m.lockTTL = ttl
	}
}

// WithRefresh overrides the post-confirmation refresh trigger.
func WithRefresh(fn func()) CoordinatorOption {
	return func(m *MutationCoordinator) { m.refresh = fn }
}

// NewMutationCoordinator creates the coordinator. initialMode seeds the
// trading-mode gate from the account profile loaded at session start.
func NewMutationCoordinator(
	gateway drepo.MutationGateway,
	store *AggregateStore,
	scopes *ScopeResolver,
	activity drepo.ActivityPublisher,
	metrics drepo.Metrics,
	lgr *logger.Logger,
	initialMode models.TradingMode,
	opts ...CoordinatorOption,
) *MutationCoordinator {
	if initialMode == "" {
		initialMode = models.ModeManual
	}
	m := &MutationCoordinator{
		gateway:  gateway,
		store:    store,
		scopes:   scopes,
		activity: activity,
		metrics:  metrics,
		logger:   lgr,
		validate: validator.New(),
		lockTTL:  10 * time.Second,
		mode:     initialMode,
		retained: make(map[string]*models.PendingMutation),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.refresh == nil {
		m.refresh = func() { go m.store.RefreshAll(context.Background()) }
	}
	return m
}

// Mode returns the trading mode the gate currently enforces.
func (m *MutationCoordinator) Mode() models.TradingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Get returns a retained mutation by id, nil when unknown.
func (m *MutationCoordinator) Get(id string) *models.PendingMutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retained[id]
}

// ExecuteTrade submits one trade. Rejected locally, before any network call,
// when validation fails or automated trading is active.
func (m *MutationCoordinator) ExecuteTrade(ctx context.Context, req models.TradeRequest) (*models.PendingMutation, error) {
	if err := m.validateRequest(&req); err != nil {
		return nil, err
	}
	order := req.Order()
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if err := m.gateMode(); err != nil {
		return nil, err
	}
	return m.runBalanceMutation(ctx, models.MutationTrade, order,
		func() map[models.Domain]any { return m.tradePatch(order) },
		func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error) {
			rec, err := m.gateway.ExecuteTrade(ctx, account, order)
			if err != nil {
				return nil, err
			}
			return m.confirmTrade(rec), nil
		})
}

// Deposit adds funds to the scoped account.
func (m *MutationCoordinator) Deposit(ctx context.Context, amount decimal.Decimal) (*models.PendingMutation, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return m.runBalanceMutation(ctx, models.MutationDeposit, amount,
		func() map[models.Domain]any { return m.cashPatch(amount) },
		func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error) {
			sum, err := m.gateway.Deposit(ctx, account, amount)
			if err != nil {
				return nil, err
			}
			return map[models.Domain]any{models.DomainSummary: sum}, nil
		})
}

// Withdraw removes funds from the scoped account. The backend refuses with
// an insufficient-funds rejection when the balance cannot cover it.
func (m *MutationCoordinator) Withdraw(ctx context.Context, amount decimal.Decimal) (*models.PendingMutation, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return m.runBalanceMutation(ctx, models.MutationWithdraw, amount,
		func() map[models.Domain]any { return m.cashPatch(amount.Neg()) },
		func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error) {
			sum, err := m.gateway.Withdraw(ctx, account, amount)
			if err != nil {
				return nil, err
			}
			return map[models.Domain]any{models.DomainSummary: sum}, nil
		})
}

// LaunchStrategy starts a named strategy. Optimistically flips the strategy
// row to running; the confirmed row replaces it.
func (m *MutationCoordinator) LaunchStrategy(ctx context.Context, req models.LaunchStrategyRequest) (*models.PendingMutation, error) {
	if err := m.validateRequest(&req); err != nil {
		return nil, err
	}

	mut := models.NewPendingMutation(models.MutationLaunchStrategy, req)
	mut.Patch = &models.OptimisticPatch{Values: m.strategyPatch(req.Name)}
	m.store.mutate(mut.Patch)

	account := m.scopes.ActiveScope().ActiveAccount()
	strat, err := m.gateway.LaunchStrategy(ctx, account, req.Name, req.RiskBand)
	if err != nil {
		m.resolveFailure(mut, err)
		return mut, nil
	}

	m.store.ApplyPatch(models.DomainStrategies, m.confirmStrategy(strat))
	m.resolveConfirmed(mut)
	return mut, nil
}

// ToggleMode switches the trading mode. Only the AUTO and MANUAL states
// exist; setting the current mode is a no-op confirmed locally.
func (m *MutationCoordinator) ToggleMode(ctx context.Context, mode models.TradingMode) (*models.PendingMutation, error) {
	if mode != models.ModeAuto && mode != models.ModeManual {
		return nil, &models.ValidationError{Field: "mode", Reason: "must be AUTO or MANUAL"}
	}

	mut := models.NewPendingMutation(models.MutationToggleMode, mode)

	m.mu.Lock()
	prev := m.mode
	if prev == mode {
		m.mu.Unlock()
		mut.Status = models.MutationConfirmed
		mut.ResolvedAt = time.Now()
		return mut, nil
	}
	// gate flips optimistically so an immediate trade submission is judged
	// against the requested mode
	m.mode = mode
	m.mu.Unlock()

	account := m.scopes.ActiveScope().ActiveAccount()
	profile, err := m.gateway.SetTradingMode(ctx, account, mode)
	if err != nil {
		m.mu.Lock()
		m.mode = prev
		m.mu.Unlock()
		m.resolveFailure(mut, err)
		return mut, nil
	}

	m.mu.Lock()
	m.mode = profile.TradingMode
	m.mu.Unlock()
	if sum, ok := m.store.Snapshot().SummaryValue(); ok {
		sum.TradingMode = profile.TradingMode
		m.store.ApplyPatch(models.DomainSummary, sum)
	}
	m.resolveConfirmed(mut)
	return mut, nil
}

// UpdateUser is a pass-through settings mutation: no optimistic patch, just
// the backend call and a summary refresh to pick up the new policy.
func (m *MutationCoordinator) UpdateUser(ctx context.Context, req models.UpdateUserRequest) (models.UserProfile, error) {
	account := m.scopes.ActiveScope().ActiveAccount()
	profile, err := m.gateway.UpdateUser(ctx, account, req)
	if err != nil {
		return models.UserProfile{}, err
	}
	m.store.Refresh(ctx, models.DomainSummary)
	return profile, nil
}

// DepositAndRetry is the insufficient-funds remediation path: deposit the
// named amount and, once the deposit confirms, resubmit the retained
// mutation's payload exactly once. The retry is never automatic; the caller
// decides when to invoke it.
func (m *MutationCoordinator) DepositAndRetry(ctx context.Context, mutationID string, amount decimal.Decimal) (*models.PendingMutation, error) {
	m.mu.Lock()
	orig, ok := m.retained[mutationID]
	m.mu.Unlock()
	if !ok || orig.Status != models.MutationInsufficientFunds {
		return nil, ErrMutationNotFound
	}

	// the mode gate covers every trade entry point, including the retry
	if orig.Kind == models.MutationTrade {
		if err := m.gateMode(); err != nil {
			return nil, err
		}
	}

	dep, err := m.Deposit(ctx, amount)
	if err != nil {
		return nil, err
	}
	if dep.Status != models.MutationConfirmed {
		// a failed deposit leaves the retained mutation available for
		// another remediation attempt
		return dep, nil
	}

	// consume exactly once: a concurrent remediation for the same id loses
	m.mu.Lock()
	_, ok = m.retained[mutationID]
	delete(m.retained, mutationID)
	m.mu.Unlock()
	if !ok {
		return nil, ErrMutationNotFound
	}

	switch orig.Kind {
	case models.MutationTrade:
		order := orig.Payload.(models.TradeOrder)
		return m.runBalanceMutation(ctx, models.MutationTrade, order,
			func() map[models.Domain]any { return m.tradePatch(order) },
			func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error) {
				rec, err := m.gateway.ExecuteTrade(ctx, account, order)
				if err != nil {
					return nil, err
				}
				return m.confirmTrade(rec), nil
			})
	case models.MutationWithdraw:
		return m.Withdraw(ctx, orig.Payload.(decimal.Decimal))
	default:
		return nil, ErrMutationNotFound
	}
}

// call is the server half of a balance mutation: it returns the confirmed
// replacement values per domain, or the backend's typed rejection.
type mutationCall func(ctx context.Context, account models.AccountID) (map[models.Domain]any, error)

// runBalanceMutation carries one balance-affecting mutation through the full
// lifecycle under the per-account serialization lock. buildPatch runs only
// after the lock is held: a queued mutation must compute its forward patch
// from the settled snapshot, not from a predecessor's optimistic state that
// may still roll back.
func (m *MutationCoordinator) runBalanceMutation(ctx context.Context, kind models.MutationKind, payload any, buildPatch func() map[models.Domain]any, call mutationCall) (*models.PendingMutation, error) {
	account := m.scopes.ActiveScope().ActiveAccount()

	m.balanceMu.Lock()
	defer m.balanceMu.Unlock()

	if m.locker != nil {
		acquired, err := m.acquireBalanceLock(ctx, account)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrMutationBusy
		}
		defer func() {
			if uerr := m.locker.Unlock(context.Background(), balanceLockKey(account)); uerr != nil {
				m.logger.Warn("mutations: balance unlock failed", logger.Error(uerr))
			}
		}()
	}

	mut := models.NewPendingMutation(kind, payload)
	mut.Patch = &models.OptimisticPatch{Values: buildPatch()}
	m.store.mutate(mut.Patch)

	confirmed, err := call(ctx, account)
	if err != nil {
		m.resolveFailure(mut, err)
		return mut, nil
	}

	for d, v := range confirmed {
		m.store.ApplyPatch(d, v)
	}
	m.resolveConfirmed(mut)
	return mut, nil
}

func balanceLockKey(account models.AccountID) string {
	return cache.GenerateKey("lock:balance", string(account))
}

func (m *MutationCoordinator) acquireBalanceLock(ctx context.Context, account models.AccountID) (bool, error) {
	deadline := time.Now().Add(m.lockTTL)
	for {
		ok, err := m.locker.TryLock(ctx, balanceLockKey(account), m.lockTTL)
		if err != nil {
			return false, fmt.Errorf("balance lock: %w", err)
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// resolveConfirmed finishes a successful mutation and kicks the refresh.
func (m *MutationCoordinator) resolveConfirmed(mut *models.PendingMutation) {
	mut.Status = models.MutationConfirmed
	mut.ResolvedAt = time.Now()
	m.record(mut)
	m.refresh()
}

// resolveFailure rolls back the optimistic patch and classifies the failure.
// An insufficient-funds rejection retains the mutation for remediation.
func (m *MutationCoordinator) resolveFailure(mut *models.PendingMutation, err error) {
	if mut.Patch != nil {
		m.store.rollback(mut.Patch)
	}
	mut.ResolvedAt = time.Now()

	var ife *models.InsufficientFundsError
	if errors.As(err, &ife) {
		mut.Status = models.MutationInsufficientFunds
		mut.Shortfall = ife.Shortfall()
		mut.Err = ife.Error()
		m.mu.Lock()
		m.retained[mut.ID] = mut
		m.mu.Unlock()
	} else {
		mut.Status = models.MutationFailed
		mut.Err = err.Error()
		m.logger.Warn("mutations: backend call failed",
			logger.String("kind", string(mut.Kind)), logger.Error(err))
	}
	m.record(mut)
}

func (m *MutationCoordinator) record(mut *models.PendingMutation) {
	m.metrics.RecordMutation(string(mut.Kind), string(mut.Status), mut.ResolvedAt.Sub(mut.CreatedAt).Seconds())

	if m.activity == nil {
		return
	}
	scope := m.scopes.ActiveScope()
	ev := models.ActivityEvent{
		ID:         mut.ID,
		Account:    scope.ActiveAccount(),
		ActorRole:  scope.ActingRole,
		Kind:       string(mut.Kind),
		Status:     string(mut.Status),
		Detail:     mut.Err,
		OccurredAt: mut.ResolvedAt,
	}
	if err := m.activity.Publish(context.Background(), ev); err != nil {
		m.logger.Warn("mutations: activity publish failed", logger.Error(err))
	}
}

// gateMode rejects manual trade entry while the steward trades the account.
func (m *MutationCoordinator) gateMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == models.ModeAuto {
		return &models.ModeRestrictedError{Mode: m.mode}
	}
	return nil
}

func (m *MutationCoordinator) validateRequest(req any) error {
	if err := defaults.Set(req); err != nil {
		return &models.ValidationError{Field: "request", Reason: err.Error()}
	}
	if err := m.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
		}
		return &models.ValidationError{Field: "request", Reason: err.Error()}
	}
	return nil
}

// validateOrder covers the checks struct tags cannot express on decimals.
func validateOrder(o models.TradeOrder) error {
	if o.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !o.Quantity.IsPositive() {
		return &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !o.Price.IsPositive() {
		return &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &models.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// --- optimistic patch builders ---

// tradePatch builds the provisional holdings and cash change for an order.
func (m *MutationCoordinator) tradePatch(order models.TradeOrder) map[models.Domain]any {
	snap := m.store.Snapshot()
	values := make(map[models.Domain]any, 2)

	if sum, ok := snap.SummaryValue(); ok {
		if order.Side == models.SideBuy {
			sum.CashBalance = sum.CashBalance.Sub(order.Cost())
			sum.BuyingPower = sum.BuyingPower.Sub(order.Cost())
		} else {
			sum.CashBalance = sum.CashBalance.Add(order.Cost())
			sum.BuyingPower = sum.BuyingPower.Add(order.Cost())
		}
		values[models.DomainSummary] = sum
	}

	if holdings, ok := snap.HoldingsValue(); ok {
		values[models.DomainHoldings] = applyOrderToHoldings(holdings, order)
	}

	return values
}

// cashPatch builds the provisional summary for a signed cash delta.
func (m *MutationCoordinator) cashPatch(delta decimal.Decimal) map[models.Domain]any {
	snap := m.store.Snapshot()
	values := make(map[models.Domain]any, 1)
	if sum, ok := snap.SummaryValue(); ok {
		sum.CashBalance = sum.CashBalance.Add(delta)
		sum.BuyingPower = sum.BuyingPower.Add(delta)
		values[models.DomainSummary] = sum
	}
	return values
}

// strategyPatch flips the named strategy to running in the snapshot.
func (m *MutationCoordinator) strategyPatch(name string) map[models.Domain]any {
	snap := m.store.Snapshot()
	values := make(map[models.Domain]any, 1)
	if cur, ok := snap.Domains[models.DomainStrategies].Value.([]models.Strategy); ok {
		out := make([]models.Strategy, len(cur))
		copy(out, cur)
		for i := range out {
			if out[i].Name == name {
				out[i].Status = "running"
				out[i].LaunchedAt = time.Now()
			}
		}
		values[models.DomainStrategies] = out
	}
	return values
}

// confirmTrade folds the confirmed record into the trades domain and returns
// the replacement values the store should install.
func (m *MutationCoordinator) confirmTrade(rec models.TradeRecord) map[models.Domain]any {
	snap := m.store.Snapshot()
	values := make(map[models.Domain]any, 1)
	if trades, ok := snap.Domains[models.DomainTrades].Value.([]models.TradeRecord); ok {
		out := make([]models.TradeRecord, 0, len(trades)+1)
		out = append(out, rec)
		out = append(out, trades...)
		values[models.DomainTrades] = out
	} else {
		values[models.DomainTrades] = []models.TradeRecord{rec}
	}
	return values
}

// confirmStrategy replaces the matching row with the confirmed one.
func (m *MutationCoordinator) confirmStrategy(strat models.Strategy) []models.Strategy {
	snap := m.store.Snapshot()
	cur, _ := snap.Domains[models.DomainStrategies].Value.([]models.Strategy)
	out := make([]models.Strategy, 0, len(cur)+1)
	replaced := false
	for _, s := range cur {
		if s.Name == strat.Name || s.ID == strat.ID {
			out = append(out, strat)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, strat)
	}
	return out
}

// applyOrderToHoldings computes the provisional position list after an order.
func applyOrderToHoldings(holdings []models.Holding, order models.TradeOrder) []models.Holding {
	out := make([]models.Holding, 0, len(holdings)+1)
	found := false
	for _, h := range holdings {
		if h.Symbol != order.Symbol {
			out = append(out, h)
			continue
		}
		found = true
		if order.Side == models.SideBuy {
			total := h.AvgCost.Mul(h.Quantity).Add(order.Cost())
			h.Quantity = h.Quantity.Add(order.Quantity)
			if h.Quantity.IsPositive() {
				h.AvgCost = total.Div(h.Quantity)
			}
		} else {
			h.Quantity = h.Quantity.Sub(order.Quantity)
		}
		h.MarketValue = h.Quantity.Mul(h.LastPrice)
		if h.Quantity.IsPositive() {
			out = append(out, h)
		}
	}
	if !found && order.Side == models.SideBuy {
		out = append(out, models.Holding{
			Symbol:      order.Symbol,
			Quantity:    order.Quantity,
			AvgCost:     order.Price,
			LastPrice:   order.Price,
			MarketValue: order.Cost(),
		})
	}
	return out
}
