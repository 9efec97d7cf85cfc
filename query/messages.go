package query

import (
	"strings"
	"time"
)

const (
	TypeGetUserEntitlements = "rewards.query.entitlements.get"
	TypeListActiveRewards   = "rewards.query.entitlements.active"
)

type GetUserEntitlementsMessage struct {
	UserID string
}

func (GetUserEntitlementsMessage) Type() string { return TypeGetUserEntitlements }

func (m GetUserEntitlementsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

// ListActiveRewardsMessage asks which reward windows are open for a
// user. A zero At means "now".
type ListActiveRewardsMessage struct {
	UserID string
	At     time.Time
}

func (ListActiveRewardsMessage) Type() string { return TypeListActiveRewards }

func (m ListActiveRewardsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
