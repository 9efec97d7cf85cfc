package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-rewards/core"
)

// Granter runs the sequential crediting protocol for one callback. It
// holds no per-request state; every callback is an independent unit of
// work with no ordering guarantee, including callbacks for the same
// user.
type Granter struct {
	verifiers    map[core.Platform]core.Verifier
	idempotency  core.IdempotencyStore
	entitlements core.EntitlementStore
	rules        core.RuleSource
	scope        string
	logger       core.Logger
	now          func() time.Time
}

type GranterOption func(*Granter)

func WithLogger(logger core.Logger) GranterOption {
	return func(g *Granter) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithIdempotencyScope(scope string) GranterOption {
	return func(g *Granter) {
		if strings.TrimSpace(scope) != "" {
			g.scope = strings.TrimSpace(scope)
		}
	}
}

func WithClock(now func() time.Time) GranterOption {
	return func(g *Granter) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGranter wires the orchestrator. The verifier set is the static
// platform mapping: it is fixed at construction and a platform without
// an entry is a deployment fault, not a request fault.
func NewGranter(
	verifiers []core.Verifier,
	idempotency core.IdempotencyStore,
	entitlements core.EntitlementStore,
	rules core.RuleSource,
	options ...GranterOption,
) (*Granter, error) {
	if idempotency == nil {
		return nil, fmt.Errorf("grants: idempotency store is required")
	}
	if entitlements == nil {
		return nil, fmt.Errorf("grants: entitlement store is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("grants: rule source is required")
	}

	byPlatform := make(map[core.Platform]core.Verifier, len(verifiers))
	for _, verifier := range verifiers {
		if verifier == nil {
			continue
		}
		platform := verifier.Platform()
		if err := platform.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byPlatform[platform]; exists {
			return nil, fmt.Errorf("grants: duplicate verifier for platform %q", platform)
		}
		byPlatform[platform] = verifier
	}
	if len(byPlatform) == 0 {
		return nil, fmt.Errorf("grants: at least one verifier is required")
	}

	_, logger := glog.Resolve("rewards", nil, nil)
	granter := &Granter{
		verifiers:    byPlatform,
		idempotency:  idempotency,
		entitlements: entitlements,
		rules:        rules,
		scope:        core.DefaultIdempotencyScope,
		logger:       logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(granter)
		}
	}
	return granter, nil
}

// Process executes the crediting protocol. A nil error means the
// callback must be acknowledged as success upstream, including the
// deduped-replay case; any failure leaves the event unrecorded so a
// redelivery will be fully reprocessed.
func (g *Granter) Process(ctx context.Context, cb core.Callback) (core.Grant, error) {
	if g == nil {
		return core.Grant{}, fmt.Errorf("grants: granter is not configured")
	}
	if err := cb.Validate(); err != nil {
		return core.Grant{}, err
	}

	verifier, ok := g.verifiers[cb.Platform]
	if !ok {
		return core.Grant{}, core.WrapMisconfiguredSecret(
			core.ErrVerifierNotRegistered,
			fmt.Sprintf("grants: no verifier wired for platform %q", cb.Platform),
			map[string]any{"platform": string(cb.Platform)},
		)
	}

	reward, err := verifier.Verify(ctx, cb)
	if err != nil {
		return core.Grant{}, err
	}
	if err := reward.Validate(); err != nil {
		return core.Grant{}, err
	}

	exists, err := g.idempotency.Exists(ctx, g.scope, reward.EventID)
	if err != nil {
		return core.Grant{}, err
	}
	if exists {
		g.logger.Debug("reward event already processed",
			"platform", string(cb.Platform),
			"event_id", reward.EventID,
		)
		return core.Grant{Reward: reward, Deduped: true}, nil
	}

	rules, err := g.rules.Load(ctx)
	if err != nil {
		return core.Grant{}, err
	}
	if !rules.Allows(reward.RewardType) {
		// Not recorded: a later configuration change permits a retried
		// delivery of the same event to be credited.
		return core.Grant{}, core.ForbiddenError(
			fmt.Sprintf("grants: reward %q is disabled by configuration", reward.RewardType),
			map[string]any{
				"platform":    string(cb.Platform),
				"reward_type": string(reward.RewardType),
			},
		)
	}
	duration, err := rules.DurationFor(reward.RewardType)
	if err != nil {
		return core.Grant{}, err
	}

	now := g.now().UTC()
	expiry, err := g.applyGrant(ctx, reward, duration, now)
	if err != nil {
		return core.Grant{}, err
	}

	if err := g.idempotency.Record(ctx, g.scope, reward.EventID); err != nil {
		return core.Grant{}, err
	}

	g.logger.Info("reward granted",
		"platform", string(cb.Platform),
		"event_id", reward.EventID,
		"user_id", reward.UserID,
		"reward_type", string(reward.RewardType),
		"expires_at", expiry,
	)
	return core.Grant{Reward: reward, ExpiresAt: expiry}, nil
}

// applyGrant persists the new entitlement window. When the store offers
// an atomic merge it is preferred; otherwise the read-modify-write
// sequence relies on the host serializing concurrent grants per user.
func (g *Granter) applyGrant(
	ctx context.Context,
	reward core.VerifiedReward,
	duration time.Duration,
	now time.Time,
) (time.Time, error) {
	if extender, ok := g.entitlements.(core.EntitlementExtender); ok {
		return extender.Extend(ctx, reward.UserID, reward.RewardType, duration, now)
	}

	current, err := g.entitlements.Get(ctx, reward.UserID)
	if err != nil {
		if !errors.Is(err, core.ErrEntitlementsNotFound) {
			return time.Time{}, err
		}
		created := core.NewUserEntitlements(reward.UserID).
			WithExpiry(reward.RewardType, now.Add(duration))
		if _, err := g.entitlements.Create(ctx, created); err != nil {
			return time.Time{}, err
		}
		return created.ExpiryFor(reward.RewardType), nil
	}

	expiry := NextExpiry(now, current.ExpiryFor(reward.RewardType), duration)
	updated := current.WithExpiry(reward.RewardType, expiry)
	if _, err := g.entitlements.Update(ctx, updated); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}
