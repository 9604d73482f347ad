package backendapi

import (
	"context"
	"fmt"

	"DeskSync/internal/domain/models"
	"DeskSync/internal/domain/repository"
)

// Account-scoped domains key their cache entries by account; market-wide
// domains share one entry under the "market" account.
const marketAccount = models.AccountID("market")

func (c *Client) FetchSummary(ctx context.Context, account models.AccountID) (models.Summary, error) {
	var out models.Summary
	path := fmt.Sprintf("/accounts/%s/summary", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainSummary), &out); err != nil {
		return out, c.fetchErr(models.DomainSummary, err)
	}
	return out, nil
}

func (c *Client) FetchHoldings(ctx context.Context, account models.AccountID) ([]models.Holding, error) {
	var out []models.Holding
	path := fmt.Sprintf("/accounts/%s/holdings", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainHoldings), &out); err != nil {
		return nil, c.fetchErr(models.DomainHoldings, err)
	}
	return out, nil
}

func (c *Client) FetchWatchlist(ctx context.Context, account models.AccountID) ([]models.WatchlistEntry, error) {
	var out []models.WatchlistEntry
	path := fmt.Sprintf("/accounts/%s/watchlist", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainWatchlist), &out); err != nil {
		return nil, c.fetchErr(models.DomainWatchlist, err)
	}
	return out, nil
}

func (c *Client) FetchTrades(ctx context.Context, account models.AccountID) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	path := fmt.Sprintf("/accounts/%s/trades", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainTrades), &out); err != nil {
		return nil, c.fetchErr(models.DomainTrades, err)
	}
	return out, nil
}

func (c *Client) FetchMarketMovers(ctx context.Context) (models.MarketMovers, error) {
	var out models.MarketMovers
	if err := c.getJSON(ctx, "/markets/movers", c.fetchKey(marketAccount, models.DomainMarketMovers), &out); err != nil {
		return out, c.fetchErr(models.DomainMarketMovers, err)
	}
	return out, nil
}

func (c *Client) FetchExchangeStatus(ctx context.Context) (models.ExchangeStatus, error) {
	var out models.ExchangeStatus
	if err := c.getJSON(ctx, "/markets/exchange-status", c.fetchKey(marketAccount, models.DomainExchangeStatus), &out); err != nil {
		return out, c.fetchErr(models.DomainExchangeStatus, err)
	}
	return out, nil
}

func (c *Client) FetchStewardPrediction(ctx context.Context, account models.AccountID) (models.StewardPrediction, error) {
	var out models.StewardPrediction
	path := fmt.Sprintf("/accounts/%s/prediction", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainStewardPrediction), &out); err != nil {
		return out, c.fetchErr(models.DomainStewardPrediction, err)
	}
	return out, nil
}

func (c *Client) FetchMarketResearch(ctx context.Context) ([]models.ResearchNote, error) {
	var out []models.ResearchNote
	if err := c.getJSON(ctx, "/markets/research", c.fetchKey(marketAccount, models.DomainMarketResearch), &out); err != nil {
		return nil, c.fetchErr(models.DomainMarketResearch, err)
	}
	return out, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, account models.AccountID) (models.OrderBook, error) {
	var out models.OrderBook
	path := fmt.Sprintf("/accounts/%s/orderbook", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainOrderBook), &out); err != nil {
		return out, c.fetchErr(models.DomainOrderBook, err)
	}
	return out, nil
}

func (c *Client) FetchMacroIndicators(ctx context.Context) ([]models.MacroIndicator, error) {
	var out []models.MacroIndicator
	if err := c.getJSON(ctx, "/markets/macro", c.fetchKey(marketAccount, models.DomainMacroIndicators), &out); err != nil {
		return nil, c.fetchErr(models.DomainMacroIndicators, err)
	}
	return out, nil
}

func (c *Client) FetchStrategies(ctx context.Context, account models.AccountID) ([]models.Strategy, error) {
	var out []models.Strategy
	path := fmt.Sprintf("/accounts/%s/strategies", account)
	if err := c.getJSON(ctx, path, c.fetchKey(account, models.DomainStrategies), &out); err != nil {
		return nil, c.fetchErr(models.DomainStrategies, err)
	}
	return out, nil
}

var _ repository.Backend = (*Client)(nil)
