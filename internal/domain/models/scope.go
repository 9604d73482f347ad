package models

import "time"

// AccountID identifies a backend trading account.
type AccountID string

// Role is the acting role attached to a session by the upstream gateway.
type Role string

const (
	RoleClient     Role = "client"
	RoleAdvisor    Role = "advisor"
	RoleCompliance Role = "compliance"
	RoleAdmin      Role = "admin"
)

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	switch r {
	case RoleClient, RoleAdvisor, RoleCompliance, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanInspect reports whether the role may view another account's data.
func (r Role) CanInspect() bool {
	return r == RoleCompliance || r == RoleAdmin
}

// CanReviewKYC reports whether the role may act on KYC submissions.
func (r Role) CanReviewKYC() bool {
	return r == RoleCompliance || r == RoleAdmin
}

// ViewScope determines which account's data the session fetches and renders.
// Exactly one of SelfID / InspectedID is active at a time.
type ViewScope struct {
	ActingRole  Role       `json:"acting_role"`
	SelfID      AccountID  `json:"self_id"`
	InspectedID *AccountID `json:"inspected_id,omitempty"`
	SetAt       time.Time  `json:"set_at"`
}

// ActiveAccount returns the account whose data should be displayed.
func (s ViewScope) ActiveAccount() AccountID {
	if s.InspectedID != nil {
		return *s.InspectedID
	}
	return s.SelfID
}

// Inspecting returns true when the scope points at another account.
func (s ViewScope) Inspecting() bool {
	return s.InspectedID != nil && *s.InspectedID != s.SelfID
}
