package secrets

import (
	"context"
	"fmt"

	"github.com/goliatone/go-rewards/core"
)

// SealedSource opens envelope-sealed values fetched from an inner
// source. Plaintext inner values pass through untouched so hosts can
// seal secrets incrementally.
type SealedSource struct {
	inner  Source
	keyset *Keyset
}

func NewSealedSource(inner Source, keyset *Keyset) (*SealedSource, error) {
	if inner == nil {
		return nil, fmt.Errorf("secrets: inner source is required")
	}
	if keyset == nil {
		return nil, fmt.Errorf("secrets: keyset is required")
	}
	return &SealedSource{inner: inner, keyset: keyset}, nil
}

func (s *SealedSource) SharedSecret(ctx context.Context, name string) (string, error) {
	if s == nil || s.inner == nil || s.keyset == nil {
		return "", core.MisconfiguredSecretError("secrets: sealed source is not configured", nil)
	}
	value, err := s.inner.SharedSecret(ctx, name)
	if err != nil {
		return "", err
	}
	if !IsSealed(value) {
		return value, nil
	}
	plaintext, err := s.keyset.Open(value)
	if err != nil {
		return "", core.WrapMisconfiguredSecret(err,
			fmt.Sprintf("secrets: cannot open sealed secret %q", name),
			map[string]any{"secret": name},
		)
	}
	return string(plaintext), nil
}
