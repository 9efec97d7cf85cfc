package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-rewards/core"
)

var (
	_ gocmd.Querier[GetUserEntitlementsMessage, core.UserEntitlements] = (*GetUserEntitlementsQuery)(nil)
	_ gocmd.Querier[ListActiveRewardsMessage, []core.RewardType]       = (*ListActiveRewardsQuery)(nil)
)
