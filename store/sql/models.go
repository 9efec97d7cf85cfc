package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

type userEntitlementRecord struct {
	bun.BaseModel `bun:"table:reward_user_entitlements,alias:rue"`

	ID        string               `bun:"id,pk"`
	UserID    string               `bun:"user_id,notnull"`
	Expiries  map[string]time.Time `bun:"expiries,type:jsonb,notnull"`
	CreatedAt time.Time            `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time            `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type processedEventRecord struct {
	bun.BaseModel `bun:"table:reward_processed_events,alias:rpe"`

	ID         string    `bun:"id,pk"`
	Scope      string    `bun:"scope,notnull"`
	EventID    string    `bun:"event_id,notnull"`
	RecordedAt time.Time `bun:"recorded_at,nullzero,notnull,default:current_timestamp"`
}

func newUserEntitlementRecord(entitlements core.UserEntitlements, now time.Time) *userEntitlementRecord {
	record := &userEntitlementRecord{
		UserID:    strings.TrimSpace(entitlements.UserID),
		Expiries:  make(map[string]time.Time, len(entitlements.Expiries)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for reward, expiry := range entitlements.Expiries {
		record.Expiries[string(reward)] = expiry.UTC()
	}
	return record
}

func (r *userEntitlementRecord) toDomain() core.UserEntitlements {
	if r == nil {
		return core.UserEntitlements{}
	}
	entitlements := core.UserEntitlements{
		UserID:    r.UserID,
		Expiries:  make(map[core.RewardType]time.Time, len(r.Expiries)),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for token, expiry := range r.Expiries {
		entitlements.Expiries[core.RewardType(token)] = expiry.UTC()
	}
	return entitlements
}
