package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain error taxonomy. Fetch failures are absorbed at the store boundary
// and surfaced as per-domain staleness; mutation failures roll back before
// they reach the caller.

// ValidationError reports a request rejected locally, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// AuthorizationError reports an action denied for the acting role.
type AuthorizationError struct {
	Role   Role
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

// FetchError wraps a failed domain fetch. Status carries the HTTP status when
// one was received, zero for transport-level failures.
type FetchError struct {
	Domain Domain
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Domain, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Domain, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InsufficientFundsError reports a mutation rejected for lack of cash. The
// shortfall is the remediation amount the caller can deposit before retrying.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s (short %s)",
		e.Required, e.Available, e.Shortfall())
}

// ModeRestrictedError reports a trade submission rejected locally because
// automated trading is active.
type ModeRestrictedError struct {
	Mode TradingMode
}

func (e *ModeRestrictedError) Error() string {
	return fmt.Sprintf("manual trade entry is disabled while trading mode is %s", e.Mode)
}
