package rewards

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-rewards/adapters/gojob"
	"github.com/goliatone/go-rewards/core"
	rewardquery "github.com/goliatone/go-rewards/query"
	"github.com/goliatone/go-rewards/secrets"
)

type engineStubVerifier struct {
	platform core.Platform
	reward   core.VerifiedReward
	err      error
}

func (v engineStubVerifier) Platform() core.Platform { return v.platform }

func (v engineStubVerifier) Verify(_ context.Context, _ core.Callback) (core.VerifiedReward, error) {
	if v.err != nil {
		return core.VerifiedReward{}, v.err
	}
	return v.reward, nil
}

type engineMemoryEntitlements struct {
	mu    sync.Mutex
	users map[string]core.UserEntitlements
}

func newEngineMemoryEntitlements() *engineMemoryEntitlements {
	return &engineMemoryEntitlements{users: map[string]core.UserEntitlements{}}
}

func (s *engineMemoryEntitlements) Get(_ context.Context, userID string) (core.UserEntitlements, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entitlements, ok := s.users[userID]
	if !ok {
		return core.UserEntitlements{}, core.ErrEntitlementsNotFound
	}
	return entitlements, nil
}

func (s *engineMemoryEntitlements) Create(_ context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[entitlements.UserID] = entitlements
	return entitlements, nil
}

func (s *engineMemoryEntitlements) Update(_ context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[entitlements.UserID] = entitlements
	return entitlements, nil
}

type engineMemoryMarkers struct {
	mu       sync.Mutex
	recorded map[string]time.Time
}

func newEngineMemoryMarkers() *engineMemoryMarkers {
	return &engineMemoryMarkers{recorded: map[string]time.Time{}}
}

func (s *engineMemoryMarkers) key(scope, eventID string) string {
	return scope + "::" + eventID
}

func (s *engineMemoryMarkers) Exists(_ context.Context, scope, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recorded[s.key(scope, eventID)]
	return ok, nil
}

func (s *engineMemoryMarkers) Record(_ context.Context, scope, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded[s.key(scope, eventID)] = time.Now().UTC()
	return nil
}

func (s *engineMemoryMarkers) DeleteRecordedBefore(_ context.Context, scope string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, recordedAt := range s.recorded {
		if recordedAt.Before(cutoff) {
			delete(s.recorded, key)
			deleted++
		}
	}
	return deleted, nil
}

func enabledEngineConfig() Config {
	return Config{
		Rules: RulesConfig{
			Enabled: true,
			Rewards: map[string]RewardRuleConfig{
				string(RewardTypeAdFree): {Enabled: true, DurationDays: 3},
			},
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, extra ...EngineOption) (*Engine, *engineMemoryMarkers) {
	t.Helper()
	markers := newEngineMemoryMarkers()
	options := append([]EngineOption{
		WithEntitlementStore(newEngineMemoryEntitlements()),
		WithIdempotencyStore(markers),
		WithVerifiers(engineStubVerifier{
			platform: PlatformAdMob,
			reward: core.VerifiedReward{
				EventID:    "evt-1",
				UserID:     "user-1",
				RewardType: RewardTypeAdFree,
			},
		}),
	}, extra...)
	engine, err := New(context.Background(), cfg, options...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, markers
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(context.Background(), Config{},
		WithVerifiers(engineStubVerifier{platform: PlatformAdMob}),
	)
	if err == nil {
		t.Fatalf("expected storage requirement error")
	}
}

func TestEngine_ProcessCreditsCallback(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, enabledEngineConfig(),
		WithClock(func() time.Time { return start }),
	)

	grant, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1&user_id=user-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if grant.Deduped {
		t.Fatalf("expected fresh grant")
	}
	want := start.Add(3 * 24 * time.Hour)
	if !grant.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, grant.ExpiresAt)
	}

	replay, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1&user_id=user-1",
	})
	if err != nil {
		t.Fatalf("process replay: %v", err)
	}
	if !replay.Deduped {
		t.Fatalf("expected deduped replay")
	}
}

func TestEngine_ProcessWithCacheOverPlainEntitlementStore(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}

	engine, _ := newTestEngine(t, enabledEngineConfig(),
		WithEntitlementCache(cacheService),
		WithClock(func() time.Time { return start }),
	)

	grant, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1&user_id=user-1",
	})
	if err != nil {
		t.Fatalf("process through cached store: %v", err)
	}
	if grant.Deduped {
		t.Fatalf("expected fresh grant")
	}
	want := start.Add(3 * 24 * time.Hour)
	if !grant.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, grant.ExpiresAt)
	}

	active, err := engine.Queries().ListActiveRewards.Query(context.Background(), rewardquery.ListActiveRewardsMessage{
		UserID: "user-1",
		At:     start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("list active rewards: %v", err)
	}
	if len(active) != 1 || active[0] != RewardTypeAdFree {
		t.Fatalf("expected the granted window readable through the cache, got %v", active)
	}
}

func TestEngine_RuntimeConfigOverridesScope(t *testing.T) {
	cfg := enabledEngineConfig()
	cfg.IdempotencyScope = "reward-staging"
	engine, markers := newTestEngine(t, cfg)

	if engine.Config().IdempotencyScope != "reward-staging" {
		t.Fatalf("expected runtime scope override, got %q", engine.Config().IdempotencyScope)
	}

	if _, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	exists, err := markers.Exists(context.Background(), "reward-staging", "evt-1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected marker recorded under the overridden scope")
	}
}

func TestEngine_ConfigProviderDrivesRuleFlips(t *testing.T) {
	loader := &mutableRawLoader{values: map[string]any{
		"rules": map[string]any{
			"enabled": true,
			"rewards": map[string]any{
				string(RewardTypeAdFree): map[string]any{
					"enabled":       true,
					"duration_days": 3,
				},
			},
		},
	}}
	engine, err := New(context.Background(), Config{},
		WithEntitlementStore(newEngineMemoryEntitlements()),
		WithIdempotencyStore(newEngineMemoryMarkers()),
		WithVerifiers(queryEchoVerifier{}),
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1",
	}); err != nil {
		t.Fatalf("process with rules enabled: %v", err)
	}

	loader.set(map[string]any{
		"rules": map[string]any{"enabled": false},
	})
	_, err = engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-2",
	})
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden once rules disabled, got %v", err)
	}
}

// queryEchoVerifier trusts the callback and lifts the event id from
// the query so one verifier can emit distinct events per test step.
type queryEchoVerifier struct{}

func (queryEchoVerifier) Platform() core.Platform { return core.PlatformAdMob }

func (queryEchoVerifier) Verify(_ context.Context, cb core.Callback) (core.VerifiedReward, error) {
	values, err := url.ParseQuery(cb.RawQuery)
	if err != nil {
		return core.VerifiedReward{}, err
	}
	return core.VerifiedReward{
		EventID:    values.Get("transaction_id"),
		UserID:     "user-1",
		RewardType: core.RewardTypeAdFree,
	}, nil
}

func TestEngine_SweeperPresentForRetentionCapableStore(t *testing.T) {
	engine, markers := newTestEngine(t, enabledEngineConfig(),
		WithMarkerRetention(time.Hour),
	)
	if engine.Sweeper() == nil {
		t.Fatalf("expected sweeper for retention-capable idempotency store")
	}

	markers.recorded["reward::old"] = time.Now().UTC().Add(-2 * time.Hour)
	markers.recorded["reward::fresh"] = time.Now().UTC()
	deleted, err := engine.Sweeper().Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one marker swept, got %d", deleted)
	}
}

type engineStubDequeuer struct{}

func (engineStubDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return nil, context.Canceled
}

func TestEngine_SweepWorkerRunsSweepJob(t *testing.T) {
	engine, markers := newTestEngine(t, enabledEngineConfig(),
		WithMarkerRetention(time.Hour),
	)
	sweepWorker, err := engine.SweepWorker(engineStubDequeuer{})
	if err != nil {
		t.Fatalf("sweep worker: %v", err)
	}

	tasks := sweepWorker.RegisteredTasks()
	if len(tasks) != 1 || tasks[0].GetID() != gojob.JobIDSweepMarkers {
		t.Fatalf("expected the sweep job registered, got %v", tasks)
	}

	markers.recorded["reward::old"] = time.Now().UTC().Add(-2 * time.Hour)
	if err := tasks[0].Execute(context.Background(), &job.ExecutionMessage{
		JobID: gojob.JobIDSweepMarkers,
	}); err != nil {
		t.Fatalf("execute sweep job: %v", err)
	}
	if _, ok := markers.recorded["reward::old"]; ok {
		t.Fatalf("expected aged marker swept by the worker task")
	}

	var unconfigured *Engine
	if _, err := unconfigured.SweepWorker(engineStubDequeuer{}); err == nil {
		t.Fatalf("expected error from engine without sweeper")
	}
}

func TestEngine_CommandsBundle(t *testing.T) {
	engine, _ := newTestEngine(t, enabledEngineConfig())
	bundle := engine.Commands()
	if bundle.ProcessCallback == nil {
		t.Fatalf("expected process callback command")
	}
	if bundle.SweepMarkers == nil {
		t.Fatalf("expected sweep markers command for retention-capable store")
	}
}

func TestEngine_HTTPHandlerServesCallbacks(t *testing.T) {
	engine, _ := newTestEngine(t, enabledEngineConfig())
	handler := engine.HTTPHandler()
	if handler == nil {
		t.Fatalf("expected handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/rewards/ssv/admob?transaction_id=evt-1", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestEngine_QueriesBundleReadsEntitlements(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, enabledEngineConfig(),
		WithClock(func() time.Time { return start }),
	)
	if _, err := engine.Process(context.Background(), Callback{
		Platform: PlatformAdMob,
		RawQuery: "transaction_id=evt-1",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	queries := engine.Queries()
	if queries.GetUserEntitlements == nil || queries.ListActiveRewards == nil {
		t.Fatalf("expected query bundle")
	}
	active, err := queries.ListActiveRewards.Query(context.Background(), rewardquery.ListActiveRewardsMessage{
		UserID: "user-1",
		At:     start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("list active rewards: %v", err)
	}
	if len(active) != 1 || active[0] != RewardTypeAdFree {
		t.Fatalf("expected the granted reward active, got %v", active)
	}
}

func TestVerifierSecretsFromSource_SkipsMissingSecrets(t *testing.T) {
	source := secrets.NewStaticSource(map[string]string{
		secrets.NameIronSourceSharedSecret: "ironsource-secret",
	})

	resolved, err := VerifierSecretsFromSource(context.Background(), source)
	if err != nil {
		t.Fatalf("resolve secrets: %v", err)
	}
	if resolved.IronSourceSharedSecret != "ironsource-secret" {
		t.Fatalf("expected ironsource secret, got %q", resolved.IronSourceSharedSecret)
	}
	if resolved.AppLovinSharedSecret != "" {
		t.Fatalf("expected missing applovin secret to stay empty")
	}
}

func TestNew_BuildsVerifiersFromSecretSource(t *testing.T) {
	engine, err := New(context.Background(), enabledEngineConfig(),
		WithEntitlementStore(newEngineMemoryEntitlements()),
		WithIdempotencyStore(newEngineMemoryMarkers()),
		WithSecretSource(secrets.NewStaticSource(map[string]string{
			secrets.NameAppLovinSharedSecret: "applovin-secret",
		})),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if engine.Granter() == nil {
		t.Fatalf("expected granter from secret-sourced verifiers")
	}
}

func TestDefaultVerifiers_SkipSecretlessNetworks(t *testing.T) {
	minimal := DefaultVerifiers(VerifierSecrets{})
	if len(minimal) != 1 || minimal[0].Platform() != PlatformAdMob {
		t.Fatalf("expected only the asymmetric verifier, got %d", len(minimal))
	}

	full := DefaultVerifiers(VerifierSecrets{
		AppLovinSharedSecret:   "applovin-secret",
		IronSourceSharedSecret: "ironsource-secret",
	})
	if len(full) != 3 {
		t.Fatalf("expected all three verifiers, got %d", len(full))
	}
}

type mutableRawLoader struct {
	mu     sync.Mutex
	values map[string]any
}

func (l *mutableRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func (l *mutableRawLoader) set(values map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = values
}
