package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-rewards/core"
)

// FailoverDiagnostic describes one fallback decision so hosts can
// alarm on a degraded primary without parsing log lines.
type FailoverDiagnostic struct {
	OccurredAt time.Time
	Secret     string
	Outcome    string
	Error      string
}

type DiagnosticHook func(event FailoverDiagnostic)

type FailoverOption func(*FailoverSource)

func WithDiagnosticHook(hook DiagnosticHook) FailoverOption {
	return func(s *FailoverSource) {
		if hook != nil {
			s.hook = hook
		}
	}
}

// FailoverSource reads from the primary and falls back on any primary
// failure, including absence. A secret missing from both sources
// surfaces the primary's ErrNotFound.
type FailoverSource struct {
	primary  Source
	fallback Source
	hook     DiagnosticHook
	now      func() time.Time
}

func NewFailoverSource(primary, fallback Source, options ...FailoverOption) (*FailoverSource, error) {
	if primary == nil {
		return nil, fmt.Errorf("secrets: primary source is required")
	}
	if fallback == nil {
		return nil, fmt.Errorf("secrets: fallback source is required")
	}
	source := &FailoverSource{
		primary:  primary,
		fallback: fallback,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(source)
		}
	}
	return source, nil
}

func (s *FailoverSource) SharedSecret(ctx context.Context, name string) (string, error) {
	if s == nil || s.primary == nil || s.fallback == nil {
		return "", core.MisconfiguredSecretError("secrets: failover source is not configured", nil)
	}

	value, primaryErr := s.primary.SharedSecret(ctx, name)
	if primaryErr == nil {
		return value, nil
	}

	value, fallbackErr := s.fallback.SharedSecret(ctx, name)
	if fallbackErr == nil {
		s.emit(FailoverDiagnostic{
			OccurredAt: s.now(),
			Secret:     name,
			Outcome:    "fallback_served",
			Error:      primaryErr.Error(),
		})
		return value, nil
	}

	s.emit(FailoverDiagnostic{
		OccurredAt: s.now(),
		Secret:     name,
		Outcome:    "both_failed",
		Error:      primaryErr.Error(),
	})
	if errors.Is(primaryErr, ErrNotFound) && errors.Is(fallbackErr, ErrNotFound) {
		return "", primaryErr
	}
	return "", errors.Join(primaryErr, fallbackErr)
}

func (s *FailoverSource) emit(event FailoverDiagnostic) {
	if s.hook != nil {
		s.hook(event)
	}
}
