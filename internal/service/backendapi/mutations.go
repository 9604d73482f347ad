package backendapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"DeskSync/internal/domain/models"
	"DeskSync/internal/domain/repository"
	xhttp "DeskSync/pkg/http"
	"DeskSync/pkg/logger"
)

// rejection is the backend's error envelope for refused mutations.
type rejection struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

// mutationErr maps backend refusals to the domain taxonomy. A 402 with an
// INSUFFICIENT_FUNDS body becomes the typed error carrying the shortfall;
// everything else stays a wrapped status error for the coordinator to treat
// as a hard failure.
func (c *Client) mutationErr(op string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusPaymentRequired {
		var rej rejection
		if jerr := json.Unmarshal(se.Body, &rej); jerr == nil && rej.Code == "INSUFFICIENT_FUNDS" {
			return &models.InsufficientFundsError{
				Required:  rej.Required,
				Available: rej.Available,
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) ExecuteTrade(ctx context.Context, account models.AccountID, order models.TradeOrder) (models.TradeRecord, error) {
	var out models.TradeRecord
	path := fmt.Sprintf("/accounts/%s/trades", account)
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, order, &out); err != nil {
		return out, c.mutationErr("execute trade", err)
	}
	c.invalidateAfterMutation(ctx, account)
	return out, nil
}

func (c *Client) Deposit(ctx context.Context, account models.AccountID, amount decimal.Decimal) (models.Summary, error) {
	return c.moveFunds(ctx, account, "deposit", amount)
}

func (c *Client) Withdraw(ctx context.Context, account models.AccountID, amount decimal.Decimal) (models.Summary, error) {
	return c.moveFunds(ctx, account, "withdraw", amount)
}

func (c *Client) moveFunds(ctx context.Context, account models.AccountID, op string, amount decimal.Decimal) (models.Summary, error) {
	var out models.Summary
	path := fmt.Sprintf("/accounts/%s/funds/%s", account, op)
	body := map[string]decimal.Decimal{"amount": amount}
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, body, &out); err != nil {
		return out, c.mutationErr(op, err)
	}
	c.invalidateAfterMutation(ctx, account)
	return out, nil
}

func (c *Client) LaunchStrategy(ctx context.Context, account models.AccountID, name, riskBand string) (models.Strategy, error) {
	var out models.Strategy
	path := fmt.Sprintf("/accounts/%s/strategies/launch", account)
	body := map[string]string{"name": name, "risk_band": riskBand}
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, body, &out); err != nil {
		return out, c.mutationErr("launch strategy", err)
	}
	c.invalidateAfterMutation(ctx, account)
	return out, nil
}

func (c *Client) SetTradingMode(ctx context.Context, account models.AccountID, mode models.TradingMode) (models.UserProfile, error) {
	var out models.UserProfile
	path := fmt.Sprintf("/accounts/%s/user", account)
	body := map[string]string{"trading_mode": string(mode)}
	if err := c.sendJSON(ctx, xhttp.MethodPatch, path, body, &out); err != nil {
		return out, c.mutationErr("set trading mode", err)
	}
	c.invalidateAfterMutation(ctx, account)
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, account models.AccountID, update models.UpdateUserRequest) (models.UserProfile, error) {
	var out models.UserProfile
	path := fmt.Sprintf("/accounts/%s/user", account)
	if err := c.sendJSON(ctx, xhttp.MethodPatch, path, update, &out); err != nil {
		return out, c.mutationErr("update user", err)
	}
	c.invalidateAfterMutation(ctx, account)
	return out, nil
}

// invalidateAfterMutation drops cached reads so the refresh that follows a
// confirmed mutation sees origin data, not the pre-mutation cache.
func (c *Client) invalidateAfterMutation(ctx context.Context, account models.AccountID) {
	if err := c.InvalidateAccount(ctx, account); err != nil {
		c.logger.Warn("backend: cache invalidation failed",
			logger.String("account", string(account)), logger.Error(err))
	}
}

// --- compliance gateway ---

func (c *Client) SubmitKYC(ctx context.Context, account models.AccountID, sub models.KYCSubmitRequest) (models.KYCRecord, error) {
	var out models.KYCRecord
	path := fmt.Sprintf("/accounts/%s/kyc", account)
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, sub, &out); err != nil {
		return out, c.mutationErr("submit kyc", err)
	}
	return out, nil
}

func (c *Client) PendingKYC(ctx context.Context) ([]models.KYCRecord, error) {
	var out []models.KYCRecord
	if err := c.getJSON(ctx, "/compliance/kyc/pending", "", &out); err != nil {
		return nil, fmt.Errorf("pending kyc: %w", err)
	}
	return out, nil
}

func (c *Client) ReviewKYC(ctx context.Context, account models.AccountID, decision, note string) (models.KYCRecord, error) {
	var out models.KYCRecord
	path := fmt.Sprintf("/compliance/kyc/%s/review", account)
	body := map[string]string{"decision": decision, "note": note}
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, body, &out); err != nil {
		return out, c.mutationErr("review kyc", err)
	}
	return out, nil
}

func (c *Client) CreateTicket(ctx context.Context, account models.AccountID, req models.SupportTicketRequest) (models.SupportTicket, error) {
	var out models.SupportTicket
	path := fmt.Sprintf("/accounts/%s/tickets", account)
	if err := c.sendJSON(ctx, xhttp.MethodPost, path, req, &out); err != nil {
		return out, c.mutationErr("create ticket", err)
	}
	return out, nil
}

func (c *Client) ListTickets(ctx context.Context, account models.AccountID) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	path := fmt.Sprintf("/accounts/%s/tickets", account)
	if err := c.getJSON(ctx, path, "", &out); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

func (c *Client) UpdateTicket(ctx context.Context, account models.AccountID, id string, req models.SupportTicketUpdateRequest) (models.SupportTicket, error) {
	var out models.SupportTicket
	path := fmt.Sprintf("/accounts/%s/tickets/%s", account, id)
	if err := c.sendJSON(ctx, xhttp.MethodPatch, path, req, &out); err != nil {
		return out, c.mutationErr("update ticket", err)
	}
	return out, nil
}

func (c *Client) DeleteTicket(ctx context.Context, account models.AccountID, id string) error {
	path := fmt.Sprintf("/accounts/%s/tickets/%s", account, id)
	if err := c.sendJSON(ctx, xhttp.MethodDelete, path, nil, nil); err != nil {
		return c.mutationErr("delete ticket", err)
	}
	return nil
}

// --- account directory ---

func (c *Client) GetProfile(ctx context.Context, account models.AccountID) (models.UserProfile, error) {
	var out models.UserProfile
	path := fmt.Sprintf("/accounts/%s/user", account)
	if err := c.getJSON(ctx, path, "", &out); err != nil {
		return out, fmt.Errorf("get profile: %w", err)
	}
	return out, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]models.UserProfile, error) {
	var out []models.UserProfile
	if err := c.getJSON(ctx, "/accounts", "", &out); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

var (
	_ repository.MutationGateway   = (*Client)(nil)
	_ repository.ComplianceGateway = (*Client)(nil)
	_ repository.AccountDirectory  = (*Client)(nil)
)
