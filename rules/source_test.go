package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-rewards/core"
)

func TestStaticSourceReturnsIsolatedCopy(t *testing.T) {
	source := NewStaticSource(core.RewardRules{
		Enabled: true,
		Rewards: map[core.RewardType]core.RewardRule{
			core.RewardTypeAdFree: {Enabled: true, DurationDays: 3},
		},
	})

	first, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first.Rewards[core.RewardTypeAdFree] = core.RewardRule{Enabled: false}

	second, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !second.Allows(core.RewardTypeAdFree) {
		t.Fatalf("expected caller mutation to not leak into the source")
	}
}

type recordingConfigProvider struct {
	cfg   core.Config
	err   error
	loads int
}

func (p *recordingConfigProvider) Load(_ context.Context, defaults core.Config) (core.Config, error) {
	p.loads++
	if p.err != nil {
		return core.Config{}, p.err
	}
	cfg := p.cfg
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaults.ServiceName
	}
	if cfg.IdempotencyScope == "" {
		cfg.IdempotencyScope = defaults.IdempotencyScope
	}
	return cfg, nil
}

func TestConfigSourceLoadsFreshEveryCall(t *testing.T) {
	provider := &recordingConfigProvider{cfg: core.Config{
		Rules: core.RulesConfig{
			Enabled: true,
			Rewards: map[string]core.RewardRuleConfig{
				"adFree": {Enabled: true, DurationDays: 2},
			},
		},
	}}
	source, err := NewConfigSource(provider)
	if err != nil {
		t.Fatalf("new config source: %v", err)
	}

	rules, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rules.Allows(core.RewardTypeAdFree) {
		t.Fatalf("expected adFree to be allowed")
	}
	duration, err := rules.DurationFor(core.RewardTypeAdFree)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if duration != 2*24*time.Hour {
		t.Fatalf("expected 48h, got %s", duration)
	}

	// A config flip must be visible on the very next load.
	provider.cfg.Rules.Enabled = false
	rules, err = source.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rules.Allows(core.RewardTypeAdFree) {
		t.Fatalf("expected disabled rules after flip")
	}
	if provider.loads != 2 {
		t.Fatalf("expected one provider load per source load, got %d", provider.loads)
	}
}

func TestConfigSourceWrapsProviderFailure(t *testing.T) {
	provider := &recordingConfigProvider{err: errors.New("remote config down")}
	source, err := NewConfigSource(provider)
	if err != nil {
		t.Fatalf("new config source: %v", err)
	}

	_, err = source.Load(context.Background())
	if err == nil {
		t.Fatalf("expected load failure")
	}
	if !errors.Is(err, core.ErrRuleSourceUnavailable) {
		t.Fatalf("expected rule-source-unavailable cause, got: %v", err)
	}
}

func TestNewConfigSourceRequiresProvider(t *testing.T) {
	if _, err := NewConfigSource(nil); err == nil {
		t.Fatalf("expected constructor failure without provider")
	}
}

func TestConfigSourceEndToEndWithCfgxProvider(t *testing.T) {
	loader := core.NewStaticRawConfigLoader(map[string]any{
		"service_name":      "rewards",
		"idempotency_scope": "reward",
		"rules": map[string]any{
			"enabled": true,
			"rewards": map[string]any{
				"premiumThemes": map[string]any{
					"enabled":       true,
					"duration_days": 7,
				},
			},
		},
	})
	source, err := NewConfigSource(core.NewCfgxConfigProvider(loader))
	if err != nil {
		t.Fatalf("new config source: %v", err)
	}

	rules, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rules.Allows(core.RewardTypePremiumThemes) {
		t.Fatalf("expected premiumThemes to be allowed")
	}
	if rules.Allows(core.RewardTypeAdFree) {
		t.Fatalf("expected unlisted reward to be disallowed")
	}
}
