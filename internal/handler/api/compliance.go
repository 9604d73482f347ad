package api

import (
	"github.com/labstack/echo/v4"

	"DeskSync/internal/domain/models"
	"DeskSync/internal/usecase"
	xhttp "DeskSync/pkg/http"
	xlogger "DeskSync/pkg/logger"
)

// SubmitKYC files an identity-verification request for the caller's account.
func (h *DashboardHandler) SubmitKYC(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.KYCSubmitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.compliance.SubmitKYC(c.Request().Context(), s.SelfID, *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	s.Store.Refresh(c.Request().Context(), models.DomainSummary)
	return xhttp.CreatedResponse(c, rec)
}

// PendingKYC lists submissions awaiting review. Reviewer roles only.
func (h *DashboardHandler) PendingKYC(c echo.Context) error {
	s, err := h.reviewerSession(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	_ = s

	recs, err := h.compliance.PendingKYC(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

// ReviewKYC applies an explicit APPROVED/REJECTED decision.
func (h *DashboardHandler) ReviewKYC(c echo.Context) error {
	req := &models.KYCReviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.reviewKYC(c, c.Param("account"), req.Decision, req.Note)
}

// ApproveKYC is the one-click approve shortcut.
func (h *DashboardHandler) ApproveKYC(c echo.Context) error {
	return h.reviewKYC(c, c.Param("account"), models.KYCApproved, "")
}

// RejectKYC is the one-click reject shortcut.
func (h *DashboardHandler) RejectKYC(c echo.Context) error {
	return h.reviewKYC(c, c.Param("account"), models.KYCRejected, "")
}

func (h *DashboardHandler) reviewKYC(c echo.Context, account, decision, note string) error {
	s, err := h.reviewerSession(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	rec, err := h.compliance.ReviewKYC(c.Request().Context(), models.AccountID(account), decision, note)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	h.logger.Info("handler: kyc reviewed",
		xlogger.String("account", account),
		xlogger.String("decision", decision),
		xlogger.String("reviewer", string(s.SelfID)))
	return xhttp.SuccessResponse(c, rec)
}

// reviewerSession resolves the session and gates on the KYC reviewer roles
// before any backend call.
func (h *DashboardHandler) reviewerSession(c echo.Context) (*usecase.Session, error) {
	s, err := h.session(c)
	if err != nil {
		return nil, err
	}
	role := s.Scopes.ActiveScope().ActingRole
	if !role.CanReviewKYC() {
		return nil, domainError(&models.AuthorizationError{Role: role, Action: "review KYC submissions"})
	}
	return s, nil
}

// --- support tickets ---

// ListTickets returns the scoped account's tickets.
func (h *DashboardHandler) ListTickets(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	tickets, err := h.compliance.ListTickets(c.Request().Context(), s.Scopes.ActiveScope().ActiveAccount())
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.ListResponse(c, tickets, int64(len(tickets)))
}

// CreateTicket opens a support ticket for the caller's own account.
func (h *DashboardHandler) CreateTicket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.SupportTicketRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ticket, err := h.compliance.CreateTicket(c.Request().Context(), s.SelfID, *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.CreatedResponse(c, ticket)
}

// UpdateTicket changes a ticket's status or note.
func (h *DashboardHandler) UpdateTicket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &models.SupportTicketUpdateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ticket, err := h.compliance.UpdateTicket(c.Request().Context(), s.Scopes.ActiveScope().ActiveAccount(), c.Param("id"), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, ticket)
}

// CloseTicket is the one-click close shortcut.
func (h *DashboardHandler) CloseTicket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	ticket, err := h.compliance.UpdateTicket(c.Request().Context(), s.Scopes.ActiveScope().ActiveAccount(), c.Param("id"),
		models.SupportTicketUpdateRequest{Status: models.TicketClosed})
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, ticket)
}

// DeleteTicket removes a ticket.
func (h *DashboardHandler) DeleteTicket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	if err := h.compliance.DeleteTicket(c.Request().Context(), s.Scopes.ActiveScope().ActiveAccount(), c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.NoContentResponse(c)
}

// ListAccounts feeds the inspect-account picker for elevated roles.
func (h *DashboardHandler) ListAccounts(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	role := s.Scopes.ActiveScope().ActingRole
	if !role.CanInspect() {
		return xhttp.AppErrorResponse(c, domainError(&models.AuthorizationError{Role: role, Action: "list accounts"}))
	}

	accounts, err := h.directory.ListAccounts(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	total := int64(len(accounts))
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(accounts) {
		accounts = accounts[:limit]
	}
	return xhttp.ListResponse(c, accounts, total)
}
