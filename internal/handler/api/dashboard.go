package api

import (
	"github.com/labstack/echo/v4"

	"DeskSync/internal/domain/models"
	xhttp "DeskSync/pkg/http"
	xlogger "DeskSync/pkg/logger"
)

// Dashboard returns the full aggregate snapshot for the active scope.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s.Store.Snapshot())
}

// DashboardDomain returns one domain's state.
func (h *DashboardHandler) DashboardDomain(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	domain := models.Domain(c.Param("domain"))
	if !models.IsValidDomain(domain) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown domain %q", domain))
	}
	return xhttp.SuccessResponse(c, s.Store.Snapshot().State(domain))
}

// Refresh forces a full refresh and returns the resulting snapshot.
func (h *DashboardHandler) Refresh(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	s.Store.RefreshAll(c.Request().Context())
	return xhttp.SuccessResponse(c, s.Store.Snapshot())
}

// RefreshDomain is the route-change one-shot: refresh a single domain.
func (h *DashboardHandler) RefreshDomain(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	domain := models.Domain(c.Param("domain"))
	if !models.IsValidDomain(domain) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown domain %q", domain))
	}
	s.Store.Refresh(c.Request().Context(), domain)
	return xhttp.SuccessResponse(c, s.Store.Snapshot().State(domain))
}

// GetScope reports the active scope.
func (h *DashboardHandler) GetScope(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s.Scopes.ActiveScope())
}

// SetInspected points the session at another account for inspection.
func (h *DashboardHandler) SetInspected(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.InspectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := s.Scopes.SetInspected(models.AccountID(req.Account)); err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, s.Scopes.ActiveScope())
}

// ClearInspected returns the scope to the caller's own account.
func (h *DashboardHandler) ClearInspected(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if err := s.Scopes.ClearInspected(); err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, s.Scopes.ActiveScope())
}

// Embeds returns the environment-driven BI/observability iframe targets.
func (h *DashboardHandler) Embeds(c echo.Context) error {
	if _, err := h.session(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"analytics": h.cfg.Embeds.Analytics,
		"activity":  h.cfg.Embeds.Activity,
		"health":    h.cfg.Embeds.Health,
	})
}

// Logout ends the caller's session.
func (h *DashboardHandler) Logout(c echo.Context) error {
	id := models.AccountID(c.Request().Header.Get(HeaderAccountID))
	if id == "" {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("missing account identity"))
	}
	ended := h.sessions.End(id)
	h.logger.Info("handler: logout", xlogger.String("account", string(id)))
	return xhttp.SuccessResponse(c, map[string]bool{"ended": ended})
}
