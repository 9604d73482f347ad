package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	mid "DeskSync/internal/middleware"
	"DeskSync/pkg/cache"
	"DeskSync/pkg/logger"
)

// Session bundles one authenticated account's sync state: its scope
// resolver, aggregate store, poller, mutation coordinator, and basket, plus
// the push subscription feeding the store. Everything is torn down together
// when the session ends.
type Session struct {
	SelfID   models.AccountID
	Scopes   *ScopeResolver
	Store    *AggregateStore
	Poller   *Poller
	Mutator  *MutationCoordinator
	Basket   *Basket
	pipeline *mid.PushPipeline
	unsub    func()
	cancel   context.CancelFunc

	mu         sync.Mutex
	lastActive time.Time
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// close releases every per-session resource.
func (s *Session) close() {
	s.cancel()
	s.pipeline.Stop()
	if s.unsub != nil {
		s.unsub()
	}
}

// SessionDeps are the shared collaborators every session is built from.
type SessionDeps struct {
	Backend   drepo.Backend
	Gateway   drepo.MutationGateway
	Directory drepo.AccountDirectory
	Stream    drepo.EventStream
	Activity  drepo.ActivityPublisher
	Metrics   drepo.Metrics
	Logger    *logger.Logger

	FetchTimeout     time.Duration
	FastInterval     time.Duration
	StandardInterval time.Duration
	SlowInterval     time.Duration
	RefreshRate      float64
	RefreshBurst     int

	// BalanceLock is the cross-replica mutation lock; nil for single-replica.
	BalanceLock cache.Service
	LockTTL     time.Duration
}

// SessionManager creates sessions on first request, sweeps idle ones, and
// closes everything at shutdown.
type SessionManager struct {
	deps        SessionDeps
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[models.AccountID]*Session
	closed   bool
}

// NewSessionManager creates the manager.
func NewSessionManager(deps SessionDeps, idleTimeout time.Duration) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &SessionManager{
		deps:        deps,
		idleTimeout: idleTimeout,
		sessions:    make(map[models.AccountID]*Session),
	}
}

// Get returns the live session for the account, creating it on first use.
func (m *SessionManager) Get(ctx context.Context, selfID models.AccountID, role models.Role) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[selfID]; ok {
		m.mu.Unlock()
		s.Touch()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.start(ctx, selfID, role)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[selfID]; ok {
		// lost the race; keep the first one
		m.mu.Unlock()
		s.close()
		existing.Touch()
		return existing, nil
	}
	m.sessions[selfID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.deps.Metrics.SetActiveSessions(n)
	m.deps.Logger.Info("session: started",
		logger.String("account", string(selfID)), logger.String("role", string(role)))
	return s, nil
}

func (m *SessionManager) start(ctx context.Context, selfID models.AccountID, role models.Role) (*Session, error) {
	d := m.deps

	scopes := NewScopeResolver(selfID, role, d.Metrics, d.Logger)
	store := NewAggregateStore(d.Backend, scopes, d.Metrics, d.Logger, d.FetchTimeout)
	poller := NewPoller(store, scopes, d.Logger, d.FastInterval, d.StandardInterval, d.SlowInterval, d.RefreshRate, d.RefreshBurst)

	// the initial trading mode seeds the client-side gate; a directory miss
	// degrades to MANUAL, the next summary fetch corrects it
	mode := models.ModeManual
	if profile, err := d.Directory.GetProfile(ctx, selfID); err == nil {
		mode = profile.TradingMode
	} else {
		d.Logger.Warn("session: profile load failed", logger.Error(err))
	}

	var copts []CoordinatorOption
	if d.BalanceLock != nil {
		copts = append(copts, WithBalanceLock(d.BalanceLock, d.LockTTL))
	}
	mutator := NewMutationCoordinator(d.Gateway, store, scopes, d.Activity, d.Metrics, d.Logger, mode, copts...)
	basket := NewBasket(mutator, d.Logger)

	pipeline := mid.NewPushPipeline(store, scopes, d.Metrics, d.Logger)
	pipeline.Start()
	unsub, err := d.Stream.Subscribe(models.TopicStewardPrediction, pipeline.Handle)
	if err != nil {
		d.Logger.Warn("session: push subscribe failed, polling only", logger.Error(err))
	}

	// scope inspections are audit-relevant; export them like mutations
	if d.Activity != nil {
		scopes.OnChange(func(sc models.ViewScope) {
			ev := models.ActivityEvent{
				ID:         uuid.NewString(),
				Account:    sc.ActiveAccount(),
				ActorRole:  sc.ActingRole,
				Kind:       "SCOPE_CHANGE",
				Status:     scopeChangeStatus(sc),
				OccurredAt: sc.SetAt,
			}
			if perr := d.Activity.Publish(context.Background(), ev); perr != nil {
				d.Logger.Warn("session: activity publish failed", logger.Error(perr))
			}
		})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go poller.Run(runCtx)

	s := &Session{
		SelfID:   selfID,
		Scopes:   scopes,
		Store:    store,
		Poller:   poller,
		Mutator:  mutator,
		Basket:   basket,
		pipeline: pipeline,
		unsub:    unsub,
		cancel:   cancel,
	}
	s.Touch()
	return s, nil
}

func scopeChangeStatus(sc models.ViewScope) string {
	if sc.Inspecting() {
		return "INSPECTING"
	}
	return "SELF"
}

// End closes and forgets the session for the account.
func (m *SessionManager) End(selfID models.AccountID) bool {
	m.mu.Lock()
	s, ok := m.sessions[selfID]
	if ok {
		delete(m.sessions, selfID)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.close()
	m.deps.Metrics.SetActiveSessions(n)
	m.deps.Logger.Info("session: ended", logger.String("account", string(selfID)))
	return true
}

// Sweep runs the idle reaper until ctx is cancelled.
func (m *SessionManager) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *SessionManager) reapIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
		m.deps.Logger.Info("session: reaped idle", logger.String("account", string(s.SelfID)))
	}
	if len(idle) > 0 {
		m.deps.Metrics.SetActiveSessions(n)
	}
}

// Close ends every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[models.AccountID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	m.deps.Metrics.SetActiveSessions(0)
}
