package usecase

import (
	"context"
	"sync"
	"time"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	"DeskSync/pkg/logger"
)

// AggregateStore owns one session's merged view model. It fans fetches out
// per domain, applies push-event patches, and guards freshness with two tags:
// an epoch that changes on every scope switch, and a per-domain sequence
// assigned at request issuance. A result is applied only when its epoch is
// current and its sequence is not behind the domain's applied sequence, so a
// slow stale response can never overwrite a fresher one and a previous
// scope's late responses are never rendered.
type AggregateStore struct {
	backend      drepo.Backend
	scopes       *ScopeResolver
	metrics      drepo.Metrics
	logger       *logger.Logger
	fetchTimeout time.Duration

	mu      sync.Mutex
	snap    models.AggregateSnapshot
	epoch   uint64
	issued  map[models.Domain]uint64
	applied map[models.Domain]uint64
}

// NewAggregateStore creates the store and registers its invalidation hook
// with the resolver, first, so consumers hooked later never see a stale
// cross-account snapshot.
func NewAggregateStore(backend drepo.Backend, scopes *ScopeResolver, metrics drepo.Metrics, lgr *logger.Logger, fetchTimeout time.Duration) *AggregateStore {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	s := &AggregateStore{
		backend:      backend,
		scopes:       scopes,
		metrics:      metrics,
		logger:       lgr,
		fetchTimeout: fetchTimeout,
		issued:       make(map[models.Domain]uint64),
		applied:      make(map[models.Domain]uint64),
	}
	scope := scopes.ActiveScope()
	s.snap = models.NewAggregateSnapshot(scope, 0)
	scopes.OnChange(func(sc models.ViewScope) { s.Invalidate(sc) })
	return s
}

// Snapshot returns a copy of the current state. Never triggers a fetch.
func (s *AggregateStore) Snapshot() models.AggregateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap.Clone()
	out.TakenAt = time.Now()
	return out
}

// Invalidate rebuilds the snapshot empty for the new scope and bumps the
// epoch so in-flight fetches for the old scope settle into nothing. Runs
// synchronously inside the scope-change notification.
func (s *AggregateStore) Invalidate(scope models.ViewScope) {
	s.mu.Lock()
	s.epoch++
	s.snap = models.NewAggregateSnapshot(scope, s.epoch)
	s.mu.Unlock()

	if err := s.backend.InvalidateAccount(context.Background(), scope.ActiveAccount()); err != nil {
		s.logger.Warn("store: backend invalidate failed", logger.Error(err))
	}
}

// RefreshAll fetches every domain in parallel for the active scope and
// returns when all settle. Safe to call while a previous refresh is still in
// flight: each call issues fresh sequence numbers, so the later issuance wins
// regardless of response arrival order.
func (s *AggregateStore) RefreshAll(ctx context.Context) {
	start := time.Now()
	s.refresh(ctx, models.AllDomains())
	s.metrics.RecordRefreshCycle(time.Since(start).Seconds())
}

// Refresh fetches only the named domains. Used for route-change one-shots
// and post-mutation touch-ups.
func (s *AggregateStore) Refresh(ctx context.Context, domains ...models.Domain) {
	if len(domains) == 0 {
		return
	}
	s.refresh(ctx, domains)
}

type issuedFetch struct {
	domain models.Domain
	seq    uint64
	epoch  uint64
	scope  models.ViewScope
}

func (s *AggregateStore) refresh(ctx context.Context, domains []models.Domain) {
	scope := s.scopes.ActiveScope()

	s.mu.Lock()
	epoch := s.epoch
	fetches := make([]issuedFetch, 0, len(domains))
	for _, d := range domains {
		s.issued[d]++
		st := s.snap.Domains[d]
		st.Loading = true
		s.snap.Domains[d] = st
		fetches = append(fetches, issuedFetch{domain: d, seq: s.issued[d], epoch: epoch, scope: scope})
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, f := range fetches {
		wg.Add(1)
		go func(f issuedFetch) {
			defer wg.Done()
			s.fetchOne(ctx, f)
		}(f)
	}
	wg.Wait()
}

func (s *AggregateStore) fetchOne(ctx context.Context, f issuedFetch) {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	value, err := s.fetchDomain(fctx, f.scope.ActiveAccount(), f.domain)
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.epoch != s.epoch || f.seq < s.applied[f.domain] {
		s.metrics.RecordStaleDrop(string(f.domain))
		s.metrics.RecordFetch(string(f.domain), "discarded", elapsed)
		return
	}

	st := s.snap.Domains[f.domain]
	if f.seq == s.issued[f.domain] {
		// latest issuance settled; a newer in-flight request keeps it loading
		st.Loading = false
	}

	if err != nil {
		// retain the last-known value, degrade to non-fresh
		st.Fresh = false
		st.Err = err.Error()
		s.snap.Domains[f.domain] = st
		s.metrics.RecordFetch(string(f.domain), "error", elapsed)
		s.logger.Warn("store: domain fetch failed",
			logger.String("domain", string(f.domain)), logger.Error(err))
		return
	}

	st.Value = value
	st.Seq = f.seq
	st.Fresh = true
	st.Err = ""
	st.RefreshedAt = time.Now()
	s.snap.Domains[f.domain] = st
	s.applied[f.domain] = f.seq
	s.metrics.RecordFetch(string(f.domain), "ok", elapsed)
}

// ApplyPatch merges push data into the current snapshot for one domain
// without touching other domains' loading state. The patch supersedes any
// fetch already in flight for the domain: responses issued before it are
// discarded by the sequence check.
func (s *AggregateStore) ApplyPatch(domain models.Domain, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued[domain]++
	seq := s.issued[domain]
	s.applied[domain] = seq

	st := s.snap.Domains[domain]
	st.Value = value
	st.Seq = seq
	st.Fresh = true
	st.Err = ""
	st.RefreshedAt = time.Now()
	s.snap.Domains[domain] = st
}

// mutate applies a mutation's forward patch, capturing the prior state of
// each touched domain so the coordinator can restore it exactly. Called only
// by the mutation coordinator.
func (s *AggregateStore) mutate(patch *models.OptimisticPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patch.Prior = make(map[models.Domain]models.DomainState, len(patch.Values))
	for d, v := range patch.Values {
		patch.Prior[d] = s.snap.Domains[d]

		s.issued[d]++
		seq := s.issued[d]
		s.applied[d] = seq

		st := s.snap.Domains[d]
		st.Value = v
		st.Seq = seq
		st.RefreshedAt = time.Now()
		s.snap.Domains[d] = st
	}
}

// rollback restores the domain states captured by mutate. Sequence counters
// keep advancing so in-flight fetches issued before the optimistic patch
// stay discarded; the next refresh re-fetches from the origin.
func (s *AggregateStore) rollback(patch *models.OptimisticPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for d, prior := range patch.Prior {
		s.snap.Domains[d] = prior
	}
}

// fetchDomain dispatches to the typed backend call for the domain.
func (s *AggregateStore) fetchDomain(ctx context.Context, account models.AccountID, d models.Domain) (any, error) {
	switch d {
	case models.DomainSummary:
		return s.backend.FetchSummary(ctx, account)
	case models.DomainHoldings:
		return s.backend.FetchHoldings(ctx, account)
	case models.DomainWatchlist:
		return s.backend.FetchWatchlist(ctx, account)
	case models.DomainTrades:
		return s.backend.FetchTrades(ctx, account)
	case models.DomainMarketMovers:
		return s.backend.FetchMarketMovers(ctx)
	case models.DomainExchangeStatus:
		return s.backend.FetchExchangeStatus(ctx)
	case models.DomainStewardPrediction:
		return s.backend.FetchStewardPrediction(ctx, account)
	case models.DomainMarketResearch:
		return s.backend.FetchMarketResearch(ctx)
	case models.DomainOrderBook:
		return s.backend.FetchOrderBook(ctx, account)
	case models.DomainMacroIndicators:
		return s.backend.FetchMacroIndicators(ctx)
	case models.DomainStrategies:
		return s.backend.FetchStrategies(ctx, account)
	default:
		return nil, &models.FetchError{Domain: d, Err: errUnknownDomain}
	}
}

var errUnknownDomain = &models.ValidationError{Field: "domain", Reason: "unknown domain"}
