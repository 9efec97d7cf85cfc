// Package admob verifies rewarded-ad callbacks signed with the
// network's rotating ECDSA key set. The signed content is the callback
// query string with the signature and key_id parameters removed, in its
// original order and percent-encoding; signatures are URL-safe base64
// DER over the SHA-256 of those bytes.
package admob

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

const (
	paramSignature     = "signature"
	paramKeyID         = "key_id"
	paramTransactionID = "transaction_id"
	paramUserID        = "user_id"
	paramCustomData    = "custom_data"
	paramRewardAmount  = "reward_amount"
)

// DefaultKeyServerURL is the network's published verification key
// endpoint. Override it in Config for tests or regional mirrors.
const DefaultKeyServerURL = "https://www.gstatic.com/admob/reward/verifier-keys.json"

type Config struct {
	KeyServerURL string
	HTTPClient   core.HTTPDoer
}

func DefaultVerifierConfig() Config {
	return Config{KeyServerURL: DefaultKeyServerURL}
}

type Verifier struct {
	keys *keyCache
}

func New(cfg Config) *Verifier {
	return &Verifier{
		keys: newKeyCache(cfg.KeyServerURL, cfg.HTTPClient),
	}
}

func (v *Verifier) Platform() core.Platform {
	return core.PlatformAdMob
}

func (v *Verifier) Verify(ctx context.Context, cb core.Callback) (core.VerifiedReward, error) {
	if v == nil || v.keys == nil {
		return core.VerifiedReward{}, core.MisconfiguredSecretError("admob: verifier is not configured", nil)
	}

	rawQuery := strings.TrimSpace(cb.RawQuery)
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return core.VerifiedReward{}, core.WrapInvalidSignature(err, "admob: malformed callback query", nil)
	}

	signature := params.Get(paramSignature)
	keyIDText := params.Get(paramKeyID)
	if signature == "" || keyIDText == "" {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"admob: signature and key_id parameters are required",
			nil,
		)
	}
	keyID, err := strconv.ParseInt(keyIDText, 10, 64)
	if err != nil {
		return core.VerifiedReward{}, core.WrapInvalidSignature(err, "admob: malformed key_id", nil)
	}

	decodedSig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(signature, "="))
	if err != nil {
		return core.VerifiedReward{}, core.WrapInvalidSignature(err, "admob: decode signature", nil)
	}

	publicKey, err := v.keys.publicKey(ctx, keyID)
	if err != nil {
		return core.VerifiedReward{}, err
	}

	content := signedContent(rawQuery)
	digest := sha256.Sum256([]byte(content))
	if !ecdsa.VerifyASN1(publicKey, digest[:], decodedSig) {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"admob: signature verification failed",
			map[string]any{"key_id": keyID},
		)
	}

	return buildReward(params)
}

// signedContent removes the signature and key_id pairs from the raw
// query while preserving the order and encoding of everything else,
// because that exact byte sequence is what the network signed.
func signedContent(rawQuery string) string {
	segments := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		name := segment
		if idx := strings.IndexByte(segment, '='); idx >= 0 {
			name = segment[:idx]
		}
		if name == paramSignature || name == paramKeyID {
			continue
		}
		kept = append(kept, segment)
	}
	return strings.Join(kept, "&")
}

func buildReward(params url.Values) (core.VerifiedReward, error) {
	eventID := strings.TrimSpace(params.Get(paramTransactionID))
	userID := strings.TrimSpace(params.Get(paramUserID))
	if eventID == "" || userID == "" {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"admob: transaction_id and user_id parameters are required",
			nil,
		)
	}

	token := strings.TrimSpace(params.Get(paramCustomData))
	if token == "" {
		return core.VerifiedReward{}, core.InvalidSignatureError(
			"admob: custom_data reward token is required",
			nil,
		)
	}
	rewardType, err := parseRewardToken(token)
	if err != nil {
		return core.VerifiedReward{}, err
	}

	var amount int64
	if rawAmount := strings.TrimSpace(params.Get(paramRewardAmount)); rawAmount != "" {
		amount, err = strconv.ParseInt(rawAmount, 10, 64)
		if err != nil {
			return core.VerifiedReward{}, core.WrapInvalidSignature(err, "admob: malformed reward_amount", nil)
		}
	}

	return core.VerifiedReward{
		EventID:    eventID,
		UserID:     userID,
		RewardType: rewardType,
		Amount:     amount,
	}, nil
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
		fmt.Sprintf("admob: unknown reward token %q", token),
		map[string]any{"token": token},
	)
}

var _ core.Verifier = (*Verifier)(nil)
