package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/grants"
)

// EntitlementStore persists per-user entitlement windows in a single
// row per user with a jsonb expiry map.
type EntitlementStore struct {
	db   *bun.DB
	repo repository.Repository[*userEntitlementRecord]
}

func NewEntitlementStore(db *bun.DB) (*EntitlementStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userEntitlementRecord](db, entitlementHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid entitlement repository wiring: %w", err)
		}
	}
	return &EntitlementStore{db: db, repo: repo}, nil
}

func (s *EntitlementStore) Get(ctx context.Context, userID string) (core.UserEntitlements, error) {
	if s == nil || s.db == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: user id is required")
	}

	record := &userEntitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserEntitlements{}, fmt.Errorf(
				"sqlstore: entitlements for user %q: %w", userID, core.ErrEntitlementsNotFound,
			)
		}
		return core.UserEntitlements{}, err
	}
	return record.toDomain(), nil
}

func (s *EntitlementStore) Create(ctx context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	if s == nil || s.repo == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	if strings.TrimSpace(entitlements.UserID) == "" {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: user id is required")
	}

	record := newUserEntitlementRecord(entitlements, time.Now().UTC())
	record.ID = uuid.NewString()
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.UserEntitlements{}, err
	}
	return created.toDomain(), nil
}

func (s *EntitlementStore) Update(ctx context.Context, entitlements core.UserEntitlements) (core.UserEntitlements, error) {
	if s == nil || s.db == nil {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	userID := strings.TrimSpace(entitlements.UserID)
	if userID == "" {
		return core.UserEntitlements{}, fmt.Errorf("sqlstore: user id is required")
	}

	record := &userEntitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserEntitlements{}, fmt.Errorf(
				"sqlstore: entitlements for user %q: %w", userID, core.ErrEntitlementsNotFound,
			)
		}
		return core.UserEntitlements{}, err
	}

	record.Expiries = make(map[string]time.Time, len(entitlements.Expiries))
	for reward, expiry := range entitlements.Expiries {
		record.Expiries[string(reward)] = expiry.UTC()
	}
	record.UpdatedAt = time.Now().UTC()

	if _, err := s.db.NewUpdate().
		Model(record).
		Column("expiries", "updated_at").
		Where("id = ?", record.ID).
		Exec(ctx); err != nil {
		return core.UserEntitlements{}, err
	}
	return record.toDomain(), nil
}

// Extend applies the additive window merge inside one transaction,
// locking the user's row so concurrent grants for the same user
// serialize at the database instead of racing through read-modify-write.
func (s *EntitlementStore) Extend(
	ctx context.Context,
	userID string,
	reward core.RewardType,
	duration time.Duration,
	now time.Time,
) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return time.Time{}, fmt.Errorf("sqlstore: user id is required")
	}
	if err := reward.Validate(); err != nil {
		return time.Time{}, err
	}

	expiry, err := s.extendTx(ctx, userID, reward, duration, now)
	if err != nil && isUniqueViolation(err) {
		// Two first-grant transactions raced on the insert; the row
		// lock covers existing rows only. The loser retries and takes
		// the update path against the winner's row.
		expiry, err = s.extendTx(ctx, userID, reward, duration, now)
	}
	if err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

func (s *EntitlementStore) extendTx(
	ctx context.Context,
	userID string,
	reward core.RewardType,
	duration time.Duration,
	now time.Time,
) (time.Time, error) {
	var expiry time.Time
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &userEntitlementRecord{}
		selectQuery := tx.NewSelect().
			Model(record).
			Where("?TableAlias.user_id = ?", userID).
			Limit(1)
		// sqlite serializes writers on its own and rejects FOR UPDATE.
		if s.db.Dialect().Name() == dialect.PG {
			selectQuery = selectQuery.For("UPDATE")
		}
		selectErr := selectQuery.Scan(ctx)
		if selectErr != nil && !errors.Is(selectErr, sql.ErrNoRows) {
			return selectErr
		}

		if errors.Is(selectErr, sql.ErrNoRows) {
			expiry = grants.NextExpiry(now, time.Time{}, duration)
			created := newUserEntitlementRecord(
				core.NewUserEntitlements(userID).WithExpiry(reward, expiry),
				now.UTC(),
			)
			created.ID = uuid.NewString()
			if _, insertErr := tx.NewInsert().Model(created).Exec(ctx); insertErr != nil {
				return insertErr
			}
			return nil
		}

		current := record.toDomain()
		expiry = grants.NextExpiry(now, current.ExpiryFor(reward), duration)
		if record.Expiries == nil {
			record.Expiries = map[string]time.Time{}
		}
		record.Expiries[string(reward)] = expiry
		record.UpdatedAt = now.UTC()
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Column("expiries", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}
