// Package ironsource verifies rewarded-ad callbacks authenticated with
// a keyed HMAC: hex(HMAC-SHA256(secret, timestamp + event_id + user_id
// + rewards)) where rewards is the compound "<amount> <rewardToken>"
// field the network echoes back.
package ironsource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

const (
	paramEventID   = "event_id"
	paramUserID    = "user_id"
	paramTimestamp = "timestamp"
	paramRewards   = "rewards"
	paramSignature = "signature"
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
	return core.PlatformIronSource
}

func (v *Verifier) Verify(_ context.Context, cb core.Callback) (core.VerifiedReward, error) {
	if v == nil || v.secret == "" {
		return core.VerifiedReward{}, core.MisconfiguredSecretError(
			"ironsource: shared secret is not configured",
			nil,
		)
	}

	params, err := url.ParseQuery(strings.TrimSpace(cb.RawQuery))
	if err != nil {
		return core.VerifiedReward{}, core.WrapInvalidSignature(err, "ironsource: malformed callback query", nil)
	}

	eventID := strings.TrimSpace(params.Get(paramEventID))
	userID := strings.TrimSpace(params.Get(paramUserID))
	timestamp := strings.TrimSpace(params.Get(paramTimestamp))
	rewards := params.Get(paramRewards)
	signature := strings.TrimSpace(params.Get(paramSignature))
	if eventID == "" || userID == "" || timestamp == "" || rewards == "" || signature == "" {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"ironsource: event_id, user_id, timestamp, rewards, and signature parameters are required",
			nil,
		)
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	_, _ = mac.Write([]byte(timestamp + eventID + userID + rewards))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"ironsource: signature verification failed",
			nil,
		)
	}

	amount, rewardType, err := parseRewardsField(rewards)
	if err != nil {
		return core.VerifiedReward{}, err
	}

	return core.VerifiedReward{
		EventID:    eventID,
		UserID:     userID,
		RewardType: rewardType,
		Amount:     amount,
	}, nil
}

// parseRewardsField splits the compound "<amount> <rewardToken>" value.
// A structurally broken field is indistinguishable from tampering and
// is treated as a signature-class failure; a clean field with an
// unknown token is a recognizable value the system does not map.
func parseRewardsField(rewards string) (int64, core.RewardType, error) {
	parts := strings.Fields(rewards)
	if len(parts) != 2 {
		return 0, "", core.InvalidSignatureError(
			fmt.Sprintf("ironsource: malformed rewards field %q", rewards),
			map[string]any{"rewards": rewards},
		)
	}
	amount, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", core.WrapInvalidSignature(err, "ironsource: malformed rewards amount", nil)
	}
	rewardType, err := parseRewardToken(parts[1])
	if err != nil {
		return 0, "", err
	}
	return amount, rewardType, nil
}

func parseRewardToken(token string) (core.RewardType, error) {
	switch token {
	case "adFree":
		return core.RewardTypeAdFree, nil
	case "premiumThemes":
		return core.RewardTypePremiumThemes, nil
	case "bonusHints":
		return core.RewardTypeBonusHints, nil
	}
	return "", core.UnrecognizedValueError(
		fmt.Sprintf("ironsource: unknown reward token %q", token),
		map[string]any{"token": token},
	)
}

var _ core.Verifier = (*Verifier)(nil)
