// Package rules supplies the live business configuration consumed by
// the grant path. Sources are read fresh on every callback so that a
// configuration flip takes effect without a restart.
package rules

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-rewards/core"
)

// StaticSource serves a fixed rule set. Useful for tests and for hosts
// that bake rules into the binary.
type StaticSource struct {
	rules core.RewardRules
}

func NewStaticSource(rules core.RewardRules) *StaticSource {
	return &StaticSource{rules: rules}
}

func (s *StaticSource) Load(context.Context) (core.RewardRules, error) {
	if s == nil {
		return core.RewardRules{}, core.ErrRuleSourceUnavailable
	}
	out := core.RewardRules{
		Enabled: s.rules.Enabled,
		Rewards: make(map[core.RewardType]core.RewardRule, len(s.rules.Rewards)),
	}
	for reward, rule := range s.rules.Rewards {
		out.Rewards[reward] = rule
	}
	return out, nil
}

// ConfigSource resolves rules through a ConfigProvider on every Load.
// It never caches: the provider owns freshness, and a provider backed
// by a remote configuration service gives each callback the current
// rule set.
type ConfigSource struct {
	provider core.ConfigProvider
	defaults core.Config
}

type ConfigSourceOption func(*ConfigSource)

func WithDefaults(defaults core.Config) ConfigSourceOption {
	return func(s *ConfigSource) {
		s.defaults = defaults
	}
}

func NewConfigSource(provider core.ConfigProvider, options ...ConfigSourceOption) (*ConfigSource, error) {
	if provider == nil {
		return nil, goerrors.Wrap(
			core.ErrRuleSourceUnavailable,
			goerrors.CategoryInternal,
			"rules: config provider is required",
		)
	}
	source := &ConfigSource{
		provider: provider,
		defaults: core.DefaultConfig(),
	}
	for _, option := range options {
		if option != nil {
			option(source)
		}
	}
	return source, nil
}

func (s *ConfigSource) Load(ctx context.Context) (core.RewardRules, error) {
	if s == nil || s.provider == nil {
		return core.RewardRules{}, core.ErrRuleSourceUnavailable
	}
	cfg, err := s.provider.Load(ctx, s.defaults)
	if err != nil {
		return core.RewardRules{}, goerrors.Wrap(
			core.ErrRuleSourceUnavailable,
			goerrors.CategoryInternal,
			"rules: configuration load failed",
		).WithTextCode(core.RewardErrorInternal).
			WithMetadata(map[string]any{"cause": err.Error()})
	}
	return cfg.Rules.ToRules(), nil
}

var (
	_ core.RuleSource = (*StaticSource)(nil)
	_ core.RuleSource = (*ConfigSource)(nil)
)
