package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rewards/core"
)

// IdempotencyStore persists processed-event markers behind a unique
// (scope, event_id) constraint.
type IdempotencyStore struct {
	db   *bun.DB
	repo repository.Repository[*processedEventRecord]
}

func NewIdempotencyStore(db *bun.DB) (*IdempotencyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processedEventRecord](db, processedEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processed-event repository wiring: %w", err)
		}
	}
	return &IdempotencyStore{db: db, repo: repo}, nil
}

func (s *IdempotencyStore) Exists(ctx context.Context, scope string, eventID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	scope, eventID, err := markerKey(scope, eventID)
	if err != nil {
		return false, err
	}

	count, err := s.db.NewSelect().
		Model((*processedEventRecord)(nil)).
		Where("?TableAlias.scope = ?", scope).
		Where("?TableAlias.event_id = ?", eventID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Record inserts the marker. A unique-constraint violation means a
// concurrent or earlier processing already recorded the event; that is
// success, not failure.
func (s *IdempotencyStore) Record(ctx context.Context, scope string, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	scope, eventID, err := markerKey(scope, eventID)
	if err != nil {
		return err
	}

	record := &processedEventRecord{
		ID:         uuid.NewString(),
		Scope:      scope,
		EventID:    eventID,
		RecordedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// Claim inserts the marker and reports whether this caller created it.
func (s *IdempotencyStore) Claim(ctx context.Context, scope string, eventID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	scope, eventID, err := markerKey(scope, eventID)
	if err != nil {
		return false, err
	}

	record := &processedEventRecord{
		ID:         uuid.NewString(),
		Scope:      scope,
		EventID:    eventID,
		RecordedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IdempotencyStore) DeleteRecordedBefore(ctx context.Context, scope string, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return 0, core.ErrIdempotencyScopeEmpty
	}

	result, err := s.db.NewDelete().
		Model((*processedEventRecord)(nil)).
		Where("scope = ?", scope).
		Where("recorded_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func markerKey(scope string, eventID string) (string, string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", "", core.ErrIdempotencyScopeEmpty
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", "", core.ErrExternalEventIDMissing
	}
	return scope, eventID, nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
