package models

// Domain names one category of aggregate dashboard data.
type Domain string

const (
	DomainSummary           Domain = "summary"
	DomainHoldings          Domain = "holdings"
	DomainWatchlist         Domain = "watchlist"
	DomainTrades            Domain = "trades"
	DomainMarketMovers      Domain = "market_movers"
	DomainExchangeStatus    Domain = "exchange_status"
	DomainStewardPrediction Domain = "steward_prediction"
	DomainMarketResearch    Domain = "market_research"
	DomainOrderBook         Domain = "order_book"
	DomainMacroIndicators   Domain = "macro_indicators"
	DomainStrategies        Domain = "strategies"
)

// AllDomains lists every domain in stable order.
func AllDomains() []Domain {
	return []Domain{
		DomainSummary,
		DomainHoldings,
		DomainWatchlist,
		DomainTrades,
		DomainMarketMovers,
		DomainExchangeStatus,
		DomainStewardPrediction,
		DomainMarketResearch,
		DomainOrderBook,
		DomainMacroIndicators,
		DomainStrategies,
	}
}

// IsValidDomain returns true if d is a known domain.
func IsValidDomain(d Domain) bool {
	for _, k := range AllDomains() {
		if k == d {
			return true
		}
	}
	return false
}

// BalanceAffecting returns true for domains whose values a funds-moving
// mutation patches optimistically. Mutations on these are serialized per
// account so overlapping patches cannot compound.
func (d Domain) BalanceAffecting() bool {
	return d == DomainSummary || d == DomainHoldings
}
