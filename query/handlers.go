package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/goliatone/go-rewards/core"
)

// EntitlementReader is the read side of the entitlement store.
type EntitlementReader interface {
	Get(ctx context.Context, userID string) (core.UserEntitlements, error)
}

type GetUserEntitlementsQuery struct {
	reader EntitlementReader
}

func NewGetUserEntitlementsQuery(reader EntitlementReader) *GetUserEntitlementsQuery {
	return &GetUserEntitlementsQuery{reader: reader}
}

func (q *GetUserEntitlementsQuery) Query(
	ctx context.Context,
	msg GetUserEntitlementsMessage,
) (core.UserEntitlements, error) {
	if q == nil || q.reader == nil {
		return core.UserEntitlements{}, queryDependencyError("query: entitlement reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.UserEntitlements{}, err
	}
	return q.reader.Get(ctx, msg.UserID)
}

type ListActiveRewardsQuery struct {
	reader EntitlementReader
	now    func() time.Time
}

func NewListActiveRewardsQuery(reader EntitlementReader) *ListActiveRewardsQuery {
	return &ListActiveRewardsQuery{
		reader: reader,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Query lists the reward types whose window is open at msg.At. A user
// without an entitlement record simply has no active rewards.
func (q *ListActiveRewardsQuery) Query(
	ctx context.Context,
	msg ListActiveRewardsMessage,
) ([]core.RewardType, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: entitlement reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	entitlements, err := q.reader.Get(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, core.ErrEntitlementsNotFound) {
			return []core.RewardType{}, nil
		}
		return nil, err
	}

	at := msg.At
	if at.IsZero() {
		at = q.now()
	}

	active := make([]core.RewardType, 0, len(entitlements.Expiries))
	for reward := range entitlements.Expiries {
		if entitlements.ActiveAt(reward, at) {
			active = append(active, reward)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	return active, nil
}
