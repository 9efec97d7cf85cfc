// Package applovin verifies rewarded-ad callbacks authenticated with a
// shared-secret message digest: hex(SHA-256(event_id + user_id + ts +
// secret)) carried in the signature parameter.
package applovin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

const (
	paramEventID    = "event_id"
	paramUserID     = "user_id"
	paramTimestamp  = "ts"
	paramRewardType = "reward_type"
	paramSignature  = "signature"
)

type Config struct {
	SharedSecret string
}

type Verifier struct {
	secret string
}

func New(cfg Config) *Verifier {
	return &Verifier{secret: strings.TrimSpace(cfg.SharedSecret)}
}

func (v *Verifier) Platform() core.Platform {
	return core.PlatformAppLovin
}

func (v *Verifier) Verify(_ context.Context, cb core.Callback) (core.VerifiedReward, error) {
	if v == nil || v.secret == "" {
		return core.VerifiedReward{}, core.MisconfiguredSecretError(
			"applovin: shared secret is not configured",
			nil,
		)
	}

	params, err := url.ParseQuery(strings.TrimSpace(cb.RawQuery))
	if err != nil {
		return core.VerifiedReward{}, core.WrapInvalidSignature(err, "applovin: malformed callback query", nil)
	}

	eventID := strings.TrimSpace(params.Get(paramEventID))
	userID := strings.TrimSpace(params.Get(paramUserID))
	timestamp := strings.TrimSpace(params.Get(paramTimestamp))
	signature := strings.TrimSpace(params.Get(paramSignature))
	if eventID == "" || userID == "" || timestamp == "" || signature == "" {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"applovin: event_id, user_id, ts, and signature parameters are required",
			nil,
		)
	}

	digest := sha256.Sum256([]byte(eventID + userID + timestamp + v.secret))
	expected := hex.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"applovin: signature verification failed",
			nil,
		)
	}

	rewardType, err := parseRewardToken(params.Get(paramRewardType))
	if err != nil {
		return core.VerifiedReward{}, err
	}

	return core.VerifiedReward{
		EventID:    eventID,
		UserID:     userID,
		RewardType: rewardType,
	}, nil
}

func parseRewardToken(token string) (core.RewardType, error) {
	switch strings.TrimSpace(token) {
	case "adFree":
		return core.RewardTypeAdFree, nil
	case "premiumThemes":
		return core.RewardTypePremiumThemes, nil
	case "bonusHints":
		return core.RewardTypeBonusHints, nil
	}
	return "", core.UnrecognizedValueError(
		fmt.Sprintf("applovin: unknown reward token %q", strings.TrimSpace(token)),
		map[string]any{"token": strings.TrimSpace(token)},
	)
}

var _ core.Verifier = (*Verifier)(nil)
