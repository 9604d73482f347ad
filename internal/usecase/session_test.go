package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
)

type fakeStream struct {
	mu     sync.Mutex
	subs   map[string]int
	unsubs int
}

func (f *fakeStream) Connect(context.Context) error   { return nil }
func (f *fakeStream) Reconnect(context.Context) error { return nil }
func (f *fakeStream) Close() error                    { return nil }
func (f *fakeStream) IsConnected() bool               { return true }

func (f *fakeStream) Subscribe(topic string, _ drepo.EventHandler) (func(), error) {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[string]int)
	}
	f.subs[topic]++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}, nil
}

type fakeDirectory struct {
	profiles map[models.AccountID]models.UserProfile
}

func (f *fakeDirectory) GetProfile(_ context.Context, account models.AccountID) (models.UserProfile, error) {
	return f.profiles[account], nil
}

func (f *fakeDirectory) ListAccounts(context.Context) ([]models.UserProfile, error) {
	out := make([]models.UserProfile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func newTestManager(t *testing.T, stream *fakeStream, dir *fakeDirectory) *SessionManager {
	t.Helper()
	backend := newFakeBackend()
	deps := SessionDeps{
		Backend:          backend,
		Gateway:          &fakeGateway{},
		Directory:        dir,
		Stream:           stream,
		Activity:         nopActivity{},
		Metrics:          nopMetrics{},
		Logger:           testLogger(t),
		FetchTimeout:     time.Second,
		FastInterval:     time.Hour,
		StandardInterval: time.Hour,
		SlowInterval:     time.Hour,
	}
	return NewSessionManager(deps, time.Minute)
}

func TestSessionCreatedOncePerAccount(t *testing.T) {
	stream := &fakeStream{}
	dir := &fakeDirectory{profiles: map[models.AccountID]models.UserProfile{
		"acct-1": {Account: "acct-1", TradingMode: models.ModeAuto},
	}}
	mgr := newTestManager(t, stream, dir)
	defer mgr.Close()

	s1, err := mgr.Get(context.Background(), "acct-1", models.RoleClient)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s2, err := mgr.Get(context.Background(), "acct-1", models.RoleClient)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected the same session instance")
	}

	stream.mu.Lock()
	subs := stream.subs[models.TopicStewardPrediction]
	stream.mu.Unlock()
	if subs != 1 {
		t.Fatalf("expected one push subscription, got %d", subs)
	}

	// the profile's trading mode seeds the gate
	if s1.Mutator.Mode() != models.ModeAuto {
		t.Fatalf("mode not seeded from profile: %s", s1.Mutator.Mode())
	}
}

func TestSessionModeDefaultsToManual(t *testing.T) {
	mgr := newTestManager(t, &fakeStream{}, &fakeDirectory{profiles: map[models.AccountID]models.UserProfile{}})
	defer mgr.Close()

	s, err := mgr.Get(context.Background(), "acct-9", models.RoleClient)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Mutator.Mode() != models.ModeManual {
		t.Fatalf("expected MANUAL default, got %s", s.Mutator.Mode())
	}
}

func TestSessionEndUnsubscribes(t *testing.T) {
	stream := &fakeStream{}
	mgr := newTestManager(t, stream, &fakeDirectory{profiles: map[models.AccountID]models.UserProfile{}})
	defer mgr.Close()

	if _, err := mgr.Get(context.Background(), "acct-1", models.RoleClient); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mgr.End("acct-1") {
		t.Fatalf("end returned false for a live session")
	}
	if mgr.End("acct-1") {
		t.Fatalf("end returned true for a dead session")
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.unsubs != 1 {
		t.Fatalf("expected one unsubscribe, got %d", stream.unsubs)
	}
}

func TestManagerCloseEndsEverything(t *testing.T) {
	stream := &fakeStream{}
	mgr := newTestManager(t, stream, &fakeDirectory{profiles: map[models.AccountID]models.UserProfile{}})

	for _, id := range []models.AccountID{"a", "b", "c"} {
		if _, err := mgr.Get(context.Background(), id, models.RoleClient); err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
	}
	mgr.Close()

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.unsubs != 3 {
		t.Fatalf("expected 3 unsubscribes, got %d", stream.unsubs)
	}
}
