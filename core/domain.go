package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPlatform        = errors.New("core: invalid platform")
	ErrInvalidRewardType      = errors.New("core: invalid reward type")
	ErrEntitlementsNotFound   = errors.New("core: user entitlements not found")
	ErrVerifierNotRegistered  = errors.New("core: verifier not registered for platform")
	ErrRuleSourceUnavailable  = errors.New("core: reward rule source is unavailable")
	ErrDurationNotConfigured  = errors.New("core: reward duration is not configured")
	ErrIdempotencyScopeEmpty  = errors.New("core: idempotency scope is required")
	ErrExternalEventIDMissing = errors.New("core: external event id is required")
)

// Platform identifies the ad network that delivered a server-side
// verification callback. The set is closed: every platform must have a
// verifier registered at construction time.
type Platform string

const (
	PlatformAdMob      Platform = "admob"
	PlatformAppLovin   Platform = "applovin"
	PlatformIronSource Platform = "ironsource"
)

func (p Platform) Validate() error {
	switch p {
	case PlatformAdMob, PlatformAppLovin, PlatformIronSource:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPlatform, string(p))
}

// RewardType enumerates the benefits the system knows how to grant.
// Network-specific tokens are mapped onto this set by each verifier;
// anything outside it is an unrecognized value, never a new member.
type RewardType string

const (
	RewardTypeAdFree        RewardType = "adFree"
	RewardTypePremiumThemes RewardType = "premiumThemes"
	RewardTypeBonusHints    RewardType = "bonusHints"
)

func (r RewardType) Validate() error {
	switch r {
	case RewardTypeAdFree, RewardTypePremiumThemes, RewardTypeBonusHints:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRewardType, string(r))
}

// Callback is a raw inbound SSV callback: the network-specific query
// string exactly as it arrived, plus the platform the routing layer
// resolved it for. RawQuery preserves original parameter order and
// percent-encoding because the asymmetric scheme signs over it.
type Callback struct {
	Platform Platform
	RawQuery string
	Metadata map[string]any
}

func (c Callback) Validate() error {
	if err := c.Platform.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.RawQuery) == "" {
		return fmt.Errorf("core: callback query string is required")
	}
	return nil
}

// VerifiedReward is the platform-agnostic payload a verifier produces
// once, and only once, its cryptographic check has passed. It is
// consumed by the orchestrator and discarded.
type VerifiedReward struct {
	EventID    string
	UserID     string
	RewardType RewardType
	// Amount carries the network-reported reward amount verbatim when
	// the callback includes one; zero otherwise. It never influences
	// the entitlement computation.
	Amount int64
}

func (v VerifiedReward) Validate() error {
	if strings.TrimSpace(v.EventID) == "" {
		return ErrExternalEventIDMissing
	}
	if strings.TrimSpace(v.UserID) == "" {
		return fmt.Errorf("core: verified reward user id is required")
	}
	return v.RewardType.Validate()
}

// UserEntitlements holds the per-user entitlement windows. A reward is
// active iff its expiry is strictly in the future; expired entries stay
// in place until overwritten by a later grant.
type UserEntitlements struct {
	UserID    string
	Expiries  map[RewardType]time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUserEntitlements(userID string) UserEntitlements {
	return UserEntitlements{
		UserID:   strings.TrimSpace(userID),
		Expiries: map[RewardType]time.Time{},
	}
}

// ExpiryFor returns the stored window for the reward type; the zero
// time when the user was never granted it.
func (u UserEntitlements) ExpiryFor(reward RewardType) time.Time {
	if len(u.Expiries) == 0 {
		return time.Time{}
	}
	return u.Expiries[reward]
}

func (u UserEntitlements) ActiveAt(reward RewardType, at time.Time) bool {
	return u.ExpiryFor(reward).After(at)
}

// WithExpiry returns a copy with the reward's window overwritten. The
// receiver's map is never mutated in place so reads handed out by
// stores stay stable.
func (u UserEntitlements) WithExpiry(reward RewardType, expiry time.Time) UserEntitlements {
	next := UserEntitlements{
		UserID:    u.UserID,
		Expiries:  make(map[RewardType]time.Time, len(u.Expiries)+1),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	for key, value := range u.Expiries {
		next.Expiries[key] = value
	}
	next.Expiries[reward] = expiry.UTC()
	return next
}

// RewardRule is the per-reward-type business configuration.
type RewardRule struct {
	Enabled      bool
	DurationDays int
}

// RewardRules is the live business configuration for reward crediting.
// It is read fresh on every callback so remote changes apply without a
// restart; implementations must not cache it.
type RewardRules struct {
	Enabled bool
	Rewards map[RewardType]RewardRule
}

// Allows reports whether the system-wide flag and the reward-specific
// flag both permit crediting the given reward type.
func (r RewardRules) Allows(reward RewardType) bool {
	if !r.Enabled {
		return false
	}
	rule, ok := r.Rewards[reward]
	return ok && rule.Enabled
}

// DurationFor returns the configured window length for the reward type.
func (r RewardRules) DurationFor(reward RewardType) (time.Duration, error) {
	rule, ok := r.Rewards[reward]
	if !ok || rule.DurationDays <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrDurationNotConfigured, string(reward))
	}
	return time.Duration(rule.DurationDays) * 24 * time.Hour, nil
}

// Grant is the orchestrator's success outcome. Deduped marks the
// idempotent-replay short circuit: the callback was acknowledged but no
// entitlement mutation happened because the event was already processed.
type Grant struct {
	Reward    VerifiedReward
	ExpiresAt time.Time
	Deduped   bool
}
