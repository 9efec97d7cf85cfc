package rewards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-rewards/adapters/gojob"
	"github.com/goliatone/go-rewards/command"
	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/grants"
	"github.com/goliatone/go-rewards/inbound"
	"github.com/goliatone/go-rewards/query"
	"github.com/goliatone/go-rewards/rules"
	"github.com/goliatone/go-rewards/secrets"
	sqlstore "github.com/goliatone/go-rewards/store/sql"
	"github.com/goliatone/go-rewards/verifiers/admob"
	"github.com/goliatone/go-rewards/verifiers/applovin"
	"github.com/goliatone/go-rewards/verifiers/ironsource"
)

// VerifierSecrets carries the per-network credentials the default
// verifier set is built from. The asymmetric network needs no secret;
// its keys are fetched from the published key server.
type VerifierSecrets struct {
	AdMobKeyServerURL      string
	AdMobHTTPClient        core.HTTPDoer
	AppLovinSharedSecret   string
	IronSourceSharedSecret string
}

// DefaultVerifiers builds verifiers for every network the secrets
// cover. The shared-secret networks are skipped when their secret is
// empty so a host can integrate networks one at a time.
func DefaultVerifiers(secrets VerifierSecrets) []core.Verifier {
	admobCfg := admob.DefaultVerifierConfig()
	if secrets.AdMobKeyServerURL != "" {
		admobCfg.KeyServerURL = secrets.AdMobKeyServerURL
	}
	if secrets.AdMobHTTPClient != nil {
		admobCfg.HTTPClient = secrets.AdMobHTTPClient
	}

	verifiers := []core.Verifier{admob.New(admobCfg)}
	if secrets.AppLovinSharedSecret != "" {
		verifiers = append(verifiers, applovin.New(applovin.Config{
			SharedSecret: secrets.AppLovinSharedSecret,
		}))
	}
	if secrets.IronSourceSharedSecret != "" {
		verifiers = append(verifiers, ironsource.New(ironsource.Config{
			SharedSecret: secrets.IronSourceSharedSecret,
		}))
	}
	return verifiers
}

// VerifierSecretsFromSource resolves the shared-secret credentials a
// default verifier set needs. Secrets a source does not carry are left
// empty so the corresponding network is skipped.
func VerifierSecretsFromSource(ctx context.Context, source secrets.Source) (VerifierSecrets, error) {
	if source == nil {
		return VerifierSecrets{}, fmt.Errorf("rewards: secret source is required")
	}
	resolved := VerifierSecrets{}

	value, err := source.SharedSecret(ctx, secrets.NameAppLovinSharedSecret)
	switch {
	case err == nil:
		resolved.AppLovinSharedSecret = value
	case !errors.Is(err, secrets.ErrNotFound):
		return VerifierSecrets{}, err
	}

	value, err = source.SharedSecret(ctx, secrets.NameIronSourceSharedSecret)
	switch {
	case err == nil:
		resolved.IronSourceSharedSecret = value
	case !errors.Is(err, secrets.ErrNotFound):
		return VerifierSecrets{}, err
	}

	return resolved, nil
}

// Commands bundles the command-bus handlers over one engine.
type Commands struct {
	ProcessCallback *command.ProcessCallbackCommand
	SweepMarkers    *command.SweepMarkersCommand
}

// Queries bundles the read-side handlers over one engine.
type Queries struct {
	GetUserEntitlements *query.GetUserEntitlementsQuery
	ListActiveRewards   *query.ListActiveRewardsQuery
}

// Engine is the assembled crediting stack: verifiers, stores, rule
// source, orchestrator, marker sweeper, and the inbound boundary.
type Engine struct {
	config       core.Config
	granter      *grants.Granter
	sweeper      *grants.MarkerSweeper
	dispatcher   *inbound.Dispatcher
	stores       core.StoreProvider
	entitlements core.EntitlementStore
	logger       core.Logger
}

type EngineOption func(*engineOptions)

type engineOptions struct {
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	persistenceClient any
	storeFactory      core.RepositoryStoreFactory
	stores            core.StoreProvider
	entitlements      core.EntitlementStore
	idempotency       core.IdempotencyStore
	entitlementCache  repositorycache.CacheService
	ruleSource        core.RuleSource
	configProvider    core.ConfigProvider
	resolver          core.OptionsResolver
	verifiers         []core.Verifier
	secretSource      secrets.Source
	retention         time.Duration
	now               func() time.Time
}

func WithLogger(logger core.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) EngineOption {
	return func(o *engineOptions) { o.loggerProvider = provider }
}

// WithPersistenceClient hands the engine a *persistence.Client or
// *bun.DB; the repository factory builds both stores from it.
func WithPersistenceClient(client any) EngineOption {
	return func(o *engineOptions) { o.persistenceClient = client }
}

func WithStoreFactory(factory core.RepositoryStoreFactory) EngineOption {
	return func(o *engineOptions) { o.storeFactory = factory }
}

func WithStores(provider core.StoreProvider) EngineOption {
	return func(o *engineOptions) { o.stores = provider }
}

func WithEntitlementStore(store core.EntitlementStore) EngineOption {
	return func(o *engineOptions) { o.entitlements = store }
}

func WithIdempotencyStore(store core.IdempotencyStore) EngineOption {
	return func(o *engineOptions) { o.idempotency = store }
}

// WithEntitlementCache wraps the entitlement store's read path in the
// shared cache service. Writes invalidate the cached record.
func WithEntitlementCache(cache repositorycache.CacheService) EngineOption {
	return func(o *engineOptions) { o.entitlementCache = cache }
}

func WithRuleSource(source core.RuleSource) EngineOption {
	return func(o *engineOptions) { o.ruleSource = source }
}

// WithConfigProvider plugs remote configuration in. The rule source
// derived from it re-reads the provider on every callback so rule
// flips apply without restarts.
func WithConfigProvider(provider core.ConfigProvider) EngineOption {
	return func(o *engineOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) EngineOption {
	return func(o *engineOptions) { o.resolver = resolver }
}

func WithVerifiers(verifiers ...core.Verifier) EngineOption {
	return func(o *engineOptions) {
		o.verifiers = append(o.verifiers, verifiers...)
	}
}

// WithSecretSource builds the default verifier set from resolved
// shared secrets. Ignored when explicit verifiers are given.
func WithSecretSource(source secrets.Source) EngineOption {
	return func(o *engineOptions) { o.secretSource = source }
}

func WithMarkerRetention(retention time.Duration) EngineOption {
	return func(o *engineOptions) {
		if retention > 0 {
			o.retention = retention
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// New assembles an engine. cfg holds runtime overrides layered over
// defaults and, when a config provider is wired, over the loaded
// remote configuration.
func New(ctx context.Context, cfg Config, options ...EngineOption) (*Engine, error) {
	opts := engineOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	resolved, err := resolveEngineConfig(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	_, logger := glog.Resolve(resolved.ServiceName, opts.loggerProvider, opts.logger)

	stores, entitlements, idempotency, err := resolveStores(opts)
	if err != nil {
		return nil, err
	}
	if opts.entitlementCache != nil {
		entitlements, err = sqlstore.NewCachedEntitlementStore(entitlements, opts.entitlementCache)
		if err != nil {
			return nil, err
		}
	}

	ruleSource := opts.ruleSource
	if ruleSource == nil {
		if opts.configProvider != nil {
			ruleSource, err = rules.NewConfigSource(
				opts.configProvider,
				rules.WithDefaults(resolved),
			)
			if err != nil {
				return nil, err
			}
		} else {
			ruleSource = rules.NewStaticSource(resolved.Rules.ToRules())
		}
	}

	verifiers := opts.verifiers
	if len(verifiers) == 0 && opts.secretSource != nil {
		resolvedSecrets, err := VerifierSecretsFromSource(ctx, opts.secretSource)
		if err != nil {
			return nil, err
		}
		verifiers = DefaultVerifiers(resolvedSecrets)
	}

	granterOptions := []grants.GranterOption{
		grants.WithIdempotencyScope(resolved.IdempotencyScope),
		grants.WithLogger(logger),
	}
	if opts.now != nil {
		granterOptions = append(granterOptions, grants.WithClock(opts.now))
	}
	granter, err := grants.NewGranter(
		verifiers,
		idempotency,
		entitlements,
		ruleSource,
		granterOptions...,
	)
	if err != nil {
		return nil, err
	}

	dispatcher, err := inbound.NewDispatcher(granter, inbound.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       resolved,
		granter:      granter,
		dispatcher:   dispatcher,
		stores:       stores,
		entitlements: entitlements,
		logger:       logger,
	}

	if retentionStore, ok := idempotency.(core.MarkerRetentionStore); ok {
		sweeperOptions := []grants.SweeperOption{
			grants.WithSweeperScope(resolved.IdempotencyScope),
			grants.WithSweeperLogger(logger),
		}
		if opts.retention > 0 {
			sweeperOptions = append(sweeperOptions, grants.WithRetention(opts.retention))
		}
		if opts.now != nil {
			sweeperOptions = append(sweeperOptions, grants.WithSweeperClock(opts.now))
		}
		engine.sweeper, err = grants.NewMarkerSweeper(retentionStore, sweeperOptions...)
		if err != nil {
			return nil, err
		}
	}

	return engine, nil
}

func resolveEngineConfig(ctx context.Context, cfg Config, opts engineOptions) (Config, error) {
	defaults := core.DefaultConfig()

	loaded := core.Config{}
	if opts.configProvider != nil {
		var err error
		loaded, err = opts.configProvider.Load(ctx, defaults)
		if err != nil {
			return Config{}, err
		}
	}

	resolver := opts.resolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}
	return resolver.Resolve(defaults, loaded, cfg)
}

func resolveStores(opts engineOptions) (core.StoreProvider, core.EntitlementStore, core.IdempotencyStore, error) {
	entitlements := opts.entitlements
	idempotency := opts.idempotency

	stores := opts.stores
	if (entitlements == nil || idempotency == nil) && stores == nil && opts.persistenceClient != nil {
		factory := opts.storeFactory
		if factory == nil {
			factory = sqlstore.NewRepositoryFactory()
		}
		built, err := factory.BuildStores(opts.persistenceClient)
		if err != nil {
			return nil, nil, nil, err
		}
		stores = built
	}
	if stores != nil {
		if entitlements == nil {
			entitlements = stores.EntitlementStore()
		}
		if idempotency == nil {
			idempotency = stores.IdempotencyStore()
		}
	}
	if entitlements == nil {
		return nil, nil, nil, fmt.Errorf("rewards: entitlement storage is required")
	}
	if idempotency == nil {
		return nil, nil, nil, fmt.Errorf("rewards: idempotency storage is required")
	}
	return stores, entitlements, idempotency, nil
}

func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) Granter() *grants.Granter {
	if e == nil {
		return nil
	}
	return e.granter
}

// Process credits one callback. It is the facade over the granter for
// hosts that do not need the command bus or HTTP boundary.
func (e *Engine) Process(ctx context.Context, cb Callback) (Grant, error) {
	if e == nil || e.granter == nil {
		return Grant{}, fmt.Errorf("rewards: engine is not configured")
	}
	return e.granter.Process(ctx, cb)
}

// Sweeper is nil when the idempotency store cannot delete markers by
// age.
func (e *Engine) Sweeper() *grants.MarkerSweeper {
	if e == nil {
		return nil
	}
	return e.sweeper
}

// SweepWorker builds a queue worker that runs this engine's marker
// sweeper on dequeued sweep jobs, carrying the engine logger unless an
// option overrides it.
func (e *Engine) SweepWorker(dequeuer queue.Dequeuer, options ...gojob.SweepWorkerOption) (*worker.Worker, error) {
	if e == nil || e.sweeper == nil {
		return nil, fmt.Errorf("rewards: engine has no marker sweeper")
	}
	options = append([]gojob.SweepWorkerOption{gojob.WithSweepWorkerLogger(e.logger)}, options...)
	return gojob.NewSweepWorker(dequeuer, e.sweeper, options...)
}

func (e *Engine) Stores() StoreProvider {
	if e == nil {
		return nil
	}
	return e.stores
}

// HTTPHandler serves callbacks at paths ending in the platform
// segment, forwarding the query string untouched.
func (e *Engine) HTTPHandler() http.Handler {
	if e == nil || e.dispatcher == nil {
		return nil
	}
	return inbound.NewHTTPHandler(e.dispatcher)
}

func (e *Engine) Dispatcher() *inbound.Dispatcher {
	if e == nil {
		return nil
	}
	return e.dispatcher
}

// Commands wires command-bus handlers over this engine. SweepMarkers
// is only functional when the engine carries a sweeper.
func (e *Engine) Commands() Commands {
	if e == nil {
		return Commands{}
	}
	bundle := Commands{
		ProcessCallback: command.NewProcessCallbackCommand(e.granter),
	}
	if e.sweeper != nil {
		bundle.SweepMarkers = command.NewSweepMarkersCommand(e.sweeper)
	}
	return bundle
}

// Queries wires read-side handlers over the engine's entitlement
// store, including the cache wrapper when one was configured.
func (e *Engine) Queries() Queries {
	if e == nil || e.entitlements == nil {
		return Queries{}
	}
	return Queries{
		GetUserEntitlements: query.NewGetUserEntitlementsQuery(e.entitlements),
		ListActiveRewards:   query.NewListActiveRewardsQuery(e.entitlements),
	}
}
