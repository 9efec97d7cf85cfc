package core

import (
	"fmt"
	"strings"
)

// DefaultIdempotencyScope tags processed-event markers written by the
// reward grant path.
const DefaultIdempotencyScope = "reward"

type RewardRuleConfig struct {
	Enabled      bool `koanf:"enabled" mapstructure:"enabled"`
	DurationDays int  `koanf:"duration_days" mapstructure:"duration_days"`
}

type RulesConfig struct {
	Enabled bool                        `koanf:"enabled" mapstructure:"enabled"`
	Rewards map[string]RewardRuleConfig `koanf:"rewards" mapstructure:"rewards"`
}

type Config struct {
	ServiceName      string      `koanf:"service_name" mapstructure:"service_name"`
	IdempotencyScope string      `koanf:"idempotency_scope" mapstructure:"idempotency_scope"`
	Rules            RulesConfig `koanf:"rules" mapstructure:"rules"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:      "rewards",
		IdempotencyScope: DefaultIdempotencyScope,
		Rules:            RulesConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.IdempotencyScope) == "" {
		return ErrIdempotencyScopeEmpty
	}
	for token, rule := range c.Rules.Rewards {
		reward := RewardType(strings.TrimSpace(token))
		if err := reward.Validate(); err != nil {
			return fmt.Errorf("core: rules.rewards key: %w", err)
		}
		if rule.Enabled && rule.DurationDays <= 0 {
			return fmt.Errorf(
				"core: rules.rewards[%s].duration_days must be positive when enabled",
				token,
			)
		}
	}
	return nil
}

// ToRules converts the loaded configuration into the runtime rule set
// the orchestrator consumes.
func (c RulesConfig) ToRules() RewardRules {
	rules := RewardRules{
		Enabled: c.Enabled,
		Rewards: make(map[RewardType]RewardRule, len(c.Rewards)),
	}
	for token, rule := range c.Rewards {
		rules.Rewards[RewardType(strings.TrimSpace(token))] = RewardRule{
			Enabled:      rule.Enabled,
			DurationDays: rule.DurationDays,
		}
	}
	return rules
}
