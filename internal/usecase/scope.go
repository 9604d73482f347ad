package usecase

import (
	"sync"
	"time"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	"DeskSync/pkg/logger"
)

// ScopeResolver owns one session's ViewScope: the account whose data is
// fetched and rendered. Elevated roles may point the scope at another account
// for inspection; every successful change runs the registered hooks
// synchronously so no consumer can observe a snapshot for the wrong account.
type ScopeResolver struct {
	mu      sync.Mutex
	scope   models.ViewScope
	hooks   []func(models.ViewScope)
	metrics drepo.Metrics
	logger  *logger.Logger
}

// NewScopeResolver creates a resolver rooted at the session's own account.
func NewScopeResolver(selfID models.AccountID, role models.Role, metrics drepo.Metrics, lgr *logger.Logger) *ScopeResolver {
	return &ScopeResolver{
		scope: models.ViewScope{
			ActingRole: role,
			SelfID:     selfID,
			SetAt:      time.Now(),
		},
		metrics: metrics,
		logger:  lgr,
	}
}

// ActiveScope returns the current scope.
func (r *ScopeResolver) ActiveScope() models.ViewScope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scope
}

// OnChange registers a hook run synchronously after every scope change, in
// registration order. The store's invalidate hook must be registered before
// any consumer-facing hook.
func (r *ScopeResolver) OnChange(hook func(models.ViewScope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// SetInspected points the scope at another account. Roles outside the
// privileged set are refused and the scope is left unchanged. Inspecting the
// session's own account is equivalent to clearing.
func (r *ScopeResolver) SetInspected(account models.AccountID) error {
	r.mu.Lock()
	if !r.scope.ActingRole.CanInspect() {
		role := r.scope.ActingRole
		r.mu.Unlock()
		return &models.AuthorizationError{Role: role, Action: "inspect another account"}
	}

	if account == "" || account == r.scope.SelfID {
		return r.clearLocked()
	}

	if r.scope.InspectedID != nil && *r.scope.InspectedID == account {
		r.mu.Unlock()
		return nil
	}

	r.scope.InspectedID = &account
	r.scope.SetAt = time.Now()
	scope := r.scope
	hooks := append([]func(models.ViewScope){}, r.hooks...)
	r.mu.Unlock()

	r.logger.Info("scope: inspecting account",
		logger.String("account", string(account)),
		logger.String("role", string(scope.ActingRole)))
	r.fire(scope, hooks)
	return nil
}

// ClearInspected returns the scope to the session's own account.
func (r *ScopeResolver) ClearInspected() error {
	r.mu.Lock()
	return r.clearLocked()
}

// clearLocked unlocks r.mu before firing hooks.
func (r *ScopeResolver) clearLocked() error {
	if r.scope.InspectedID == nil {
		r.mu.Unlock()
		return nil
	}

	r.scope.InspectedID = nil
	r.scope.SetAt = time.Now()
	scope := r.scope
	hooks := append([]func(models.ViewScope){}, r.hooks...)
	r.mu.Unlock()

	r.logger.Info("scope: inspection cleared",
		logger.String("self", string(scope.SelfID)))
	r.fire(scope, hooks)
	return nil
}

func (r *ScopeResolver) fire(scope models.ViewScope, hooks []func(models.ViewScope)) {
	r.metrics.RecordScopeSwitch()
	for _, h := range hooks {
		h(scope)
	}
}
