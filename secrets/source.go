// Package secrets sources the shared credentials the symmetric
// verifiers are configured with. Values may live in process memory,
// the environment, or at rest under an AES-GCM envelope.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// Well-known secret names the engine resolves at assembly time.
const (
	NameAppLovinSharedSecret   = "applovin.shared_secret"
	NameIronSourceSharedSecret = "ironsource.shared_secret"
)

// ErrNotFound reports a secret a source does not carry. Callers decide
// whether that means "network not integrated" or a deployment fault.
var ErrNotFound = errors.New("secrets: secret not found")

// Source resolves named secrets.
type Source interface {
	SharedSecret(ctx context.Context, name string) (string, error)
}

type StaticSource struct {
	values map[string]string
}

func NewStaticSource(values map[string]string) *StaticSource {
	copied := make(map[string]string, len(values))
	for name, value := range values {
		copied[strings.TrimSpace(name)] = value
	}
	return &StaticSource{values: copied}
}

func (s *StaticSource) SharedSecret(_ context.Context, name string) (string, error) {
	if s == nil {
		return "", core.MisconfiguredSecretError("secrets: static source is nil", nil)
	}
	value, ok := s.values[strings.TrimSpace(name)]
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return value, nil
}

// DefaultEnvPrefix is the variable prefix the environment source reads
// under: applovin.shared_secret becomes
// REWARDS_APPLOVIN_SHARED_SECRET.
const DefaultEnvPrefix = "REWARDS_"

type EnvSource struct {
	prefix string
	lookup func(string) (string, bool)
}

type EnvOption func(*EnvSource)

func WithEnvPrefix(prefix string) EnvOption {
	return func(s *EnvSource) {
		s.prefix = strings.TrimSpace(prefix)
	}
}

func WithLookup(lookup func(string) (string, bool)) EnvOption {
	return func(s *EnvSource) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

func NewEnvSource(options ...EnvOption) *EnvSource {
	source := &EnvSource{
		prefix: DefaultEnvPrefix,
		lookup: os.LookupEnv,
	}
	for _, option := range options {
		if option != nil {
			option(source)
		}
	}
	return source
}

func (s *EnvSource) SharedSecret(_ context.Context, name string) (string, error) {
	if s == nil || s.lookup == nil {
		return "", core.MisconfiguredSecretError("secrets: environment source is nil", nil)
	}
	variable := s.variableFor(name)
	value, ok := s.lookup(variable)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %q (env %s)", ErrNotFound, name, variable)
	}
	return strings.TrimSpace(value), nil
}

func (s *EnvSource) variableFor(name string) string {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.NewReplacer(".", "_", "-", "_").Replace(normalized)
	return s.prefix + normalized
}
