package api

import (
	"github.com/labstack/echo/v4"

	"DeskSync/internal/domain/models"
	xhttp "DeskSync/pkg/http"
)

// ExecuteTrade submits a single trade.
func (h *DashboardHandler) ExecuteTrade(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	mut, err := s.Mutator.ExecuteTrade(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return mutationResponse(c, mut)
}

// Deposit adds funds.
func (h *DashboardHandler) Deposit(c echo.Context) error {
	return h.moveFunds(c, false)
}

// Withdraw removes funds.
func (h *DashboardHandler) Withdraw(c echo.Context) error {
	return h.moveFunds(c, true)
}

func (h *DashboardHandler) moveFunds(c echo.Context, withdraw bool) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.AmountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var mut *models.PendingMutation
	if withdraw {
		mut, err = s.Mutator.Withdraw(c.Request().Context(), req.Amount)
	} else {
		mut, err = s.Mutator.Deposit(c.Request().Context(), req.Amount)
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return mutationResponse(c, mut)
}

// DepositAndRetry is the insufficient-funds remediation: deposit the
// shortfall, then resubmit the retained mutation once.
func (h *DashboardHandler) DepositAndRetry(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.DepositAndRetryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	mut, err := s.Mutator.DepositAndRetry(c.Request().Context(), req.MutationID, req.Amount)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return mutationResponse(c, mut)
}

// LaunchStrategy starts a named strategy.
func (h *DashboardHandler) LaunchStrategy(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.LaunchStrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	mut, err := s.Mutator.LaunchStrategy(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return mutationResponse(c, mut)
}

// ToggleMode switches between AUTO and MANUAL trading.
func (h *DashboardHandler) ToggleMode(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.ToggleModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	mut, err := s.Mutator.ToggleMode(c.Request().Context(), models.TradingMode(req.Mode))
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return mutationResponse(c, mut)
}

// UpdateSectorPolicy is a pass-through settings mutation: no optimistic
// patch, just the backend call and a summary refresh.
func (h *DashboardHandler) UpdateSectorPolicy(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.UpdateUserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	updated, err := s.Mutator.UpdateUser(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, updated)
}

// --- basket ---

// GetBasket lists the queued draft orders.
func (h *DashboardHandler) GetBasket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s.Basket.Entries())
}

// AddToBasket queues one draft order.
func (h *DashboardHandler) AddToBasket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	entry, err := s.Basket.Add(req.Order())
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.CreatedResponse(c, entry)
}

// RemoveFromBasket drops one draft by id.
func (h *DashboardHandler) RemoveFromBasket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !s.Basket.Remove(c.Param("id")) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("basket entry not found"))
	}
	return xhttp.NoContentResponse(c)
}

// ClearBasket cancels the whole draft.
func (h *DashboardHandler) ClearBasket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	s.Basket.Clear()
	return xhttp.NoContentResponse(c)
}

// ExecuteBasket submits the queued entries sequentially and reports each
// entry's outcome.
func (h *DashboardHandler) ExecuteBasket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	outcome, err := s.Basket.Execute(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, outcome)
}
