package grants

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-rewards/core"
)

// DefaultMarkerRetention keeps processed-event markers well past the
// longest redelivery window observed across the integrated networks.
const DefaultMarkerRetention = 30 * 24 * time.Hour

// MarkerSweeper deletes processed-event markers older than the
// retention window. It implements the externalized TTL garbage
// collection for hosts that run it on a queue worker.
type MarkerSweeper struct {
	store     core.MarkerRetentionStore
	scope     string
	retention time.Duration
	logger    core.Logger
	now       func() time.Time
}

type SweeperOption func(*MarkerSweeper)

func WithSweeperLogger(logger core.Logger) SweeperOption {
	return func(s *MarkerSweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRetention(retention time.Duration) SweeperOption {
	return func(s *MarkerSweeper) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

func WithSweeperScope(scope string) SweeperOption {
	return func(s *MarkerSweeper) {
		if strings.TrimSpace(scope) != "" {
			s.scope = strings.TrimSpace(scope)
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *MarkerSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMarkerSweeper(store core.MarkerRetentionStore, options ...SweeperOption) (*MarkerSweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("grants: marker retention store is required")
	}
	_, logger := glog.Resolve("rewards", nil, nil)
	sweeper := &MarkerSweeper{
		store:     store,
		scope:     core.DefaultIdempotencyScope,
		retention: DefaultMarkerRetention,
		logger:    logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(sweeper)
		}
	}
	return sweeper, nil
}

// Sweep removes markers recorded before now minus the retention window
// and returns how many were deleted.
func (s *MarkerSweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("grants: marker sweeper is not configured")
	}
	cutoff := s.now().UTC().Add(-s.retention)
	deleted, err := s.store.DeleteRecordedBefore(ctx, s.scope, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("swept processed-event markers",
			"scope", s.scope,
			"cutoff", cutoff,
			"deleted", deleted,
		)
	}
	return deleted, nil
}

// Execute adapts Sweep to the queue-agnostic job contract so a worker
// can dispatch it by job id.
func (s *MarkerSweeper) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("grants: marker sweeper is not configured")
	}
	if msg != nil && len(msg.Parameters) > 0 {
		if scope, ok := msg.Parameters["scope"].(string); ok && strings.TrimSpace(scope) != "" {
			copied := *s
			copied.scope = strings.TrimSpace(scope)
			_, err := copied.Sweep(ctx)
			return err
		}
	}
	_, err := s.Sweep(ctx)
	return err
}
