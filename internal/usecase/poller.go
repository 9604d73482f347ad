package usecase

import (
	"context"
	"time"

	"DeskSync/internal/domain/models"
	"DeskSync/internal/service/ratelimit"
	"DeskSync/pkg/logger"
)

// Poller drives the store's periodic refreshes. Domains are grouped by how
// quickly they churn; steward_prediction is push-fed and only fetched once
// per scope to seed the snapshot. A token bucket per group coalesces
// route-change bursts and overlapping timers into single refreshes.
type Poller struct {
	store  *AggregateStore
	limit  *ratelimit.Limiter
	logger *logger.Logger

	fastInterval     time.Duration
	standardInterval time.Duration
	slowInterval     time.Duration
	refreshRate      float64
	refreshBurst     float64

	kick chan struct{}
}

// Interval groups. steward_prediction is deliberately absent from all three.
var (
	fastDomains     = []models.Domain{models.DomainOrderBook, models.DomainMarketMovers, models.DomainExchangeStatus}
	standardDomains = []models.Domain{models.DomainSummary, models.DomainHoldings, models.DomainTrades, models.DomainWatchlist}
	slowDomains     = []models.Domain{models.DomainMarketResearch, models.DomainMacroIndicators, models.DomainStrategies}
)

// NewPoller builds the scheduler and registers its scope-change kick.
func NewPoller(store *AggregateStore, scopes *ScopeResolver, lgr *logger.Logger, fast, standard, slow time.Duration, rate float64, burst int) *Poller {
	if rate <= 0 {
		rate = 2
	}
	if burst <= 0 {
		burst = 3
	}
	p := &Poller{
		store:            store,
		limit:            ratelimit.New(),
		logger:           lgr,
		fastInterval:     fast,
		standardInterval: standard,
		slowInterval:     slow,
		refreshRate:      rate,
		refreshBurst:     float64(burst),
		kick:             make(chan struct{}, 1),
	}
	// registered after the store's invalidate hook, so the kick refreshes the
	// already-emptied snapshot for the new scope
	scopes.OnChange(func(models.ViewScope) {
		p.limit.Reset("refresh:all")
		p.Kick()
	})
	return p
}

// Kick requests an immediate full refresh. Coalesces with a pending kick.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. The first cycle seeds every domain,
// including the push-fed prediction.
func (p *Poller) Run(ctx context.Context) {
	p.refreshAll(ctx)

	fast := time.NewTicker(p.fastInterval)
	standard := time.NewTicker(p.standardInterval)
	slow := time.NewTicker(p.slowInterval)
	defer fast.Stop()
	defer standard.Stop()
	defer slow.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			p.refreshAll(ctx)
		case <-fast.C:
			p.refreshGroup(ctx, "fast", fastDomains)
		case <-standard.C:
			p.refreshGroup(ctx, "standard", standardDomains)
		case <-slow.C:
			p.refreshGroup(ctx, "slow", slowDomains)
		}
	}
}

func (p *Poller) refreshAll(ctx context.Context) {
	if !p.limit.Allow("refresh:all", p.refreshBurst, p.refreshRate) {
		p.logger.Debug("poller: full refresh throttled")
		return
	}
	p.store.RefreshAll(ctx)
}

func (p *Poller) refreshGroup(ctx context.Context, name string, domains []models.Domain) {
	if !p.limit.Allow("refresh:"+name, p.refreshBurst, p.refreshRate) {
		p.logger.Debug("poller: group refresh throttled", logger.String("group", name))
		return
	}
	p.store.Refresh(ctx, domains...)
}
