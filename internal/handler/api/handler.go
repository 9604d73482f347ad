package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	"DeskSync/internal/usecase"
	"DeskSync/pkg/config"
	xhttp "DeskSync/pkg/http"
	xlogger "DeskSync/pkg/logger"
)

// Identity headers injected by the upstream gateway.
const (
	HeaderAccountID   = "X-Account-Id"
	HeaderAccountRole = "X-Account-Role"
)

// DashboardHandler serves the merged snapshot and the mutation surface to
// the browser UI.
type DashboardHandler struct {
	sessions   *usecase.SessionManager
	compliance drepo.ComplianceGateway
	directory  drepo.AccountDirectory
	cfg        *config.Config
	logger     *xlogger.Logger
}

func NewDashboardHandler(sessions *usecase.SessionManager, compliance drepo.ComplianceGateway, directory drepo.AccountDirectory, cfg *config.Config, lgr *xlogger.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions:   sessions,
		compliance: compliance,
		directory:  directory,
		cfg:        cfg,
		logger:     lgr,
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/dashboard", h.Dashboard)
	g.GET("/dashboard/:domain", h.DashboardDomain)
	g.POST("/refresh", h.Refresh)
	g.POST("/refresh/:domain", h.RefreshDomain)

	g.GET("/accounts", h.ListAccounts)
	g.GET("/scope/inspect", h.GetScope)
	g.POST("/scope/inspect", h.SetInspected)
	g.DELETE("/scope/inspect", h.ClearInspected)

	g.POST("/trades", h.ExecuteTrade)
	g.POST("/funds/deposit", h.Deposit)
	g.POST("/funds/withdraw", h.Withdraw)
	g.POST("/funds/remediate", h.DepositAndRetry)
	g.POST("/strategies/launch", h.LaunchStrategy)
	g.POST("/mode", h.ToggleMode)
	g.POST("/policy/sectors", h.UpdateSectorPolicy)

	g.GET("/basket", h.GetBasket)
	g.POST("/basket", h.AddToBasket)
	g.DELETE("/basket", h.ClearBasket)
	g.DELETE("/basket/:id", h.RemoveFromBasket)
	g.POST("/basket/execute", h.ExecuteBasket)

	g.POST("/kyc", h.SubmitKYC)
	g.GET("/kyc/pending", h.PendingKYC)
	g.POST("/kyc/:account/review", h.ReviewKYC)
	g.POST("/kyc/:account/approve", h.ApproveKYC)
	g.POST("/kyc/:account/reject", h.RejectKYC)

	g.GET("/support/tickets", h.ListTickets)
	g.POST("/support/tickets", h.CreateTicket)
	g.PATCH("/support/tickets/:id", h.UpdateTicket)
	g.POST("/support/tickets/:id/close", h.CloseTicket)
	g.DELETE("/support/tickets/:id", h.DeleteTicket)

	g.GET("/embeds", h.Embeds)
	g.POST("/logout", h.Logout)
}

// session resolves the caller's session from the identity headers.
func (h *DashboardHandler) session(c echo.Context) (*usecase.Session, error) {
	id := models.AccountID(c.Request().Header.Get(HeaderAccountID))
	role := models.Role(c.Request().Header.Get(HeaderAccountRole))
	if id == "" {
		return nil, xhttp.UnauthorizedError("missing account identity")
	}
	if !models.IsValidRole(role) {
		return nil, xhttp.UnauthorizedError("unknown acting role")
	}

	s, err := h.sessions.Get(c.Request().Context(), id, role)
	if err != nil {
		h.logger.Error("handler: session start failed", xlogger.Error(err))
		return nil, xhttp.InternalError("session unavailable")
	}
	return s, nil
}

func (h *DashboardHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// domainError maps the sync core's error taxonomy onto the HTTP envelope.
func domainError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return xhttp.NewAppError("ERR_VALIDATION", verr.Field, verr.Error(), http.StatusUnprocessableEntity)
	}
	var aerr *models.AuthorizationError
	if errors.As(err, &aerr) {
		return xhttp.ForbiddenError(aerr.Error())
	}
	var merr *models.ModeRestrictedError
	if errors.As(err, &merr) {
		return xhttp.ConflictError(merr.Error())
	}
	var ferr *models.InsufficientFundsError
	if errors.As(err, &ferr) {
		return xhttp.PaymentRequiredError(ferr.Error()).
			WithParam("shortfall", ferr.Shortfall().String())
	}
	if errors.Is(err, usecase.ErrMutationBusy) {
		return xhttp.ConflictError(err.Error())
	}
	if errors.Is(err, usecase.ErrMutationNotFound) {
		return xhttp.NotFoundError(err.Error())
	}
	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		return xhttp.NewAppError("ERR_UPSTREAM", "", fetchErr.Error(), http.StatusBadGateway)
	}
	return xhttp.InternalError(err.Error())
}

// mutationResponse renders a resolved mutation with a status code matching
// its outcome.
func mutationResponse(c echo.Context, mut *models.PendingMutation) error {
	switch mut.Status {
	case models.MutationConfirmed:
		return xhttp.SuccessResponse(c, mut)
	case models.MutationInsufficientFunds:
		appErr := xhttp.PaymentRequiredError("insufficient funds").
			WithParam("mutation_id", mut.ID).
			WithParam("shortfall", mut.Shortfall.String())
		return xhttp.DataResponse(c, appErr.Status, map[string]any{
			"mutation": mut,
			"errors":   []*xhttp.AppError{appErr},
		})
	default:
		appErr := xhttp.NewAppError("ERR_UPSTREAM", "", mut.Err, http.StatusBadGateway).
			WithParam("mutation_id", mut.ID)
		return xhttp.DataResponse(c, appErr.Status, map[string]any{
			"mutation": mut,
			"errors":   []*xhttp.AppError{appErr},
		})
	}
}
