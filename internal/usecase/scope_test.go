package usecase

import (
	"errors"
	"testing"

	"DeskSync/internal/domain/models"
)

func TestScopeDefaultsToSelf(t *testing.T) {
	r := clientScope(t, "acct-1")
	scope := r.ActiveScope()
	if scope.ActiveAccount() != "acct-1" {
		t.Fatalf("expected self account, got %s", scope.ActiveAccount())
	}
	if scope.Inspecting() {
		t.Fatalf("expected not inspecting")
	}
}

func TestScopeInspectDeniedForClient(t *testing.T) {
	r := clientScope(t, "acct-1")

	fired := 0
	r.OnChange(func(models.ViewScope) { fired++ })

	err := r.SetInspected("acct-2")
	var authErr *models.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if got := r.ActiveScope().ActiveAccount(); got != "acct-1" {
		t.Fatalf("scope changed on denied inspect: %s", got)
	}
	if fired != 0 {
		t.Fatalf("hooks fired on denied inspect")
	}
}

func TestScopeInspectAndClear(t *testing.T) {
	r := NewScopeResolver("acct-1", models.RoleCompliance, nopMetrics{}, testLogger(t))

	var seen []models.AccountID
	r.OnChange(func(sc models.ViewScope) { seen = append(seen, sc.ActiveAccount()) })

	if err := r.SetInspected("acct-2"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if got := r.ActiveScope().ActiveAccount(); got != "acct-2" {
		t.Fatalf("expected acct-2, got %s", got)
	}
	if !r.ActiveScope().Inspecting() {
		t.Fatalf("expected inspecting")
	}

	if err := r.ClearInspected(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := r.ActiveScope().ActiveAccount(); got != "acct-1" {
		t.Fatalf("expected acct-1 after clear, got %s", got)
	}

	// hooks ran synchronously, in order
	if len(seen) != 2 || seen[0] != "acct-2" || seen[1] != "acct-1" {
		t.Fatalf("unexpected hook sequence %v", seen)
	}
}

func TestScopeInspectSelfIsClear(t *testing.T) {
	r := NewScopeResolver("acct-1", models.RoleAdmin, nopMetrics{}, testLogger(t))
	if err := r.SetInspected("acct-2"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := r.SetInspected("acct-1"); err != nil {
		t.Fatalf("inspect self: %v", err)
	}
	if r.ActiveScope().Inspecting() {
		t.Fatalf("inspecting self should clear the scope")
	}
}

func TestScopeRepeatInspectIsNoop(t *testing.T) {
	r := NewScopeResolver("acct-1", models.RoleCompliance, nopMetrics{}, testLogger(t))

	fired := 0
	r.OnChange(func(models.ViewScope) { fired++ })

	if err := r.SetInspected("acct-2"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := r.SetInspected("acct-2"); err != nil {
		t.Fatalf("repeat inspect: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected one hook firing, got %d", fired)
	}
}

func TestScopeClearWithoutInspectIsNoop(t *testing.T) {
	r := NewScopeResolver("acct-1", models.RoleCompliance, nopMetrics{}, testLogger(t))

	fired := 0
	r.OnChange(func(models.ViewScope) { fired++ })

	if err := r.ClearInspected(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if fired != 0 {
		t.Fatalf("hooks fired on idle clear")
	}
}
