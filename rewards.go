package rewards

import "github.com/goliatone/go-rewards/core"

type Config = core.Config

type RulesConfig = core.RulesConfig

type RewardRuleConfig = core.RewardRuleConfig

type Platform = core.Platform

type RewardType = core.RewardType

type Callback = core.Callback

type VerifiedReward = core.VerifiedReward

type Grant = core.Grant

type UserEntitlements = core.UserEntitlements

type RewardRules = core.RewardRules

type Verifier = core.Verifier
type RuleSource = core.RuleSource
type EntitlementStore = core.EntitlementStore
type EntitlementExtender = core.EntitlementExtender
type IdempotencyStore = core.IdempotencyStore
type MarkerRetentionStore = core.MarkerRetentionStore
type StoreProvider = core.StoreProvider
type ConfigProvider = core.ConfigProvider
type RawConfigLoader = core.RawConfigLoader
type OptionsResolver = core.OptionsResolver
type HTTPDoer = core.HTTPDoer
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

const (
	PlatformAdMob      = core.PlatformAdMob
	PlatformAppLovin   = core.PlatformAppLovin
	PlatformIronSource = core.PlatformIronSource

	RewardTypeAdFree        = core.RewardTypeAdFree
	RewardTypePremiumThemes = core.RewardTypePremiumThemes
	RewardTypeBonusHints    = core.RewardTypeBonusHints

	DefaultIdempotencyScope = core.DefaultIdempotencyScope
)

var (
	NewStaticRawConfigLoader = core.NewStaticRawConfigLoader
	NewCfgxConfigProvider    = core.NewCfgxConfigProvider

	HTTPStatus = core.HTTPStatus

	IsInvalidSignature    = core.IsInvalidSignature
	IsUnrecognizedValue   = core.IsUnrecognizedValue
	IsForbidden           = core.IsForbidden
	IsMisconfiguredSecret = core.IsMisconfiguredSecret
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
