package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/grants"
)

const entitlementCacheKeyPrefix = "go-rewards::user_entitlements::v1"

// CachedEntitlementStore fronts a base store with a read cache. Every
// write path invalidates the user's key, so the grant protocol itself
// always sees store truth; the cache serves the read-heavy entitlement
// checks the host application performs.
type CachedEntitlementStore struct {
	base  core.EntitlementStore
	cache repositorycache.CacheService
}

func NewCachedEntitlementStore(
	base core.EntitlementStore,
	cacheService repositorycache.CacheService,
) (*CachedEntitlementStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base entitlement store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: entitlement cache service is required")
	}
	return &CachedEntitlementStore{base: base, cache: cacheService}, nil
}

// EntitlementCacheKey returns the deterministic cache key for one
// user's entitlement record: go-rewards::user_entitlements::v1::<user_id>
// with the user segment URL-path escaped.
func EntitlementCacheKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}
	return entitlementCacheKeyPrefix + "::" + url.PathEscape(userID), nil
}

func (s *CachedEntitlementStore) Get(ctx context.Context, userID string) (core.UserEntitlements, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	cacheKey, err := EntitlementCacheKey(userID)
	if err != nil {
		return core.UserEntitlements{}, err
	}

	entitlements, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.UserEntitlements, error) {
		fetched, fetchErr := s.base.Get(ctx, userID)
		if fetchErr != nil {
			return core.UserEntitlements{}, fetchErr
		}
		return cloneEntitlements(fetched), nil
	})
	if err != nil {
		return core.UserEntitlements{}, err
	}
	return cloneEntitlements(entitlements), nil
}

func (s *CachedEntitlementStore) Create(ctx context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	created, err := s.base.Create(ctx, entitlements)
	if err != nil {
		return core.UserEntitlements{}, err
	}
	if err := s.invalidate(ctx, created.UserID); err != nil {
		return core.UserEntitlements{}, err
	}
	return created, nil
}

func (s *CachedEntitlementStore) Update(ctx context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	updated, err := s.base.Update(ctx, entitlements)
	if err != nil {
		return core.UserEntitlements{}, err
	}
	if err := s.invalidate(ctx, updated.UserID); err != nil {
		return core.UserEntitlements{}, err
	}
	return updated, nil
}

// Extend forwards to the base store's atomic merge when it has one.
// When the base is a plain EntitlementStore the merge runs against the
// base's Get/Update directly, never through the cached read path, so a
// stale cache entry cannot feed the computed window.
func (s *CachedEntitlementStore) Extend(
	ctx context.Context,
	userID string,
	reward core.RewardType,
	duration time.Duration,
	now time.Time,
) (time.Time, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return time.Time{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	expiry, err := s.extendBase(ctx, userID, reward, duration, now)
	if err != nil {
		return time.Time{}, err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

func (s *CachedEntitlementStore) extendBase(
	ctx context.Context,
	userID string,
	reward core.RewardType,
	duration time.Duration,
	now time.Time,
) (time.Time, error) {
	if extender, ok := s.base.(core.EntitlementExtender); ok {
		return extender.Extend(ctx, userID, reward, duration, now)
	}

	current, err := s.base.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrEntitlementsNotFound) {
			return time.Time{}, err
		}
		created := core.NewUserEntitlements(userID).
			WithExpiry(reward, grants.NextExpiry(now, time.Time{}, duration))
		if _, err := s.base.Create(ctx, created); err != nil {
			return time.Time{}, err
		}
		return created.ExpiryFor(reward), nil
	}

	expiry := grants.NextExpiry(now, current.ExpiryFor(reward), duration)
	if _, err := s.base.Update(ctx, current.WithExpiry(reward, expiry)); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

func (s *CachedEntitlementStore) invalidate(ctx context.Context, userID string) error {
	cacheKey, err := EntitlementCacheKey(userID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneEntitlements(entitlements core.UserEntitlements) core.UserEntitlements {
	cloned := core.UserEntitlements{
		UserID:    entitlements.UserID,
		Expiries:  make(map[core.RewardType]time.Time, len(entitlements.Expiries)),
		CreatedAt: entitlements.CreatedAt,
		UpdatedAt: entitlements.UpdatedAt,
	}
	for reward, expiry := range entitlements.Expiries {
		cloned.Expiries[reward] = expiry
	}
	return cloned
}

var _ core.EntitlementStore = (*CachedEntitlementStore)(nil)
