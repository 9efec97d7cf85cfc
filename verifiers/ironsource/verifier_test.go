package ironsource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-rewards/core"
)

const testSecret = "ironsource-private-key"

func signedQuery(eventID, userID, timestamp, rewards string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(timestamp + eventID + userID + rewards))
	return fmt.Sprintf(
		"event_id=%s&user_id=%s&timestamp=%s&rewards=%s&signature=%s",
		eventID, userID, timestamp, url.QueryEscape(rewards), hex.EncodeToString(mac.Sum(nil)),
	)
}

func TestVerify_ValidHMAC(t *testing.T) {
	verifier := New(Config{SharedSecret: testSecret})

	reward, err := verifier.Verify(context.Background(), core.Callback{
		Platform: core.PlatformIronSource,
		RawQuery: signedQuery("evt9", "u3", "1700000000", "10 adFree"),
	})
	if err != nil {
		t.Fatalf("verify callback: %v", err)
	}
	if reward.EventID != "evt9" || reward.UserID != "u3" {
		t.Fatalf("unexpected payload: %+v", reward)
	}
	if reward.RewardType != core.RewardTypeAdFree {
		t.Fatalf("expected adFree reward, got %q", reward.RewardType)
	}
	if reward.Amount != 10 {
		t.Fatalf("expected amount 10, got %d", reward.Amount)
	}
}

func TestVerify_UnknownTokenAfterValidHMAC(t *testing.T) {
	verifier := New(Config{SharedSecret: testSecret})

	// The HMAC is recomputed over the exact field, so the failure must
	// classify as an unrecognized value, not a signature failure.
	_, err := verifier.Verify(context.Background(), core.Callback{
		Platform: core.PlatformIronSource,
		RawQuery: signedQuery("evt9", "u3", "1700000000", "10 unknownToken"),
	})
	if !core.IsUnrecognizedValue(err) {
		t.Fatalf("expected unrecognized value, got: %v", err)
	}
}

func TestVerify_MalformedRewardsField(t *testing.T) {
	verifier := New(Config{SharedSecret: testSecret})

	for _, rewards := range []string{"10", "ten adFree", "10 adFree extra"} {
		_, err := verifier.Verify(context.Background(), core.Callback{
			Platform: core.PlatformIronSource,
			RawQuery: signedQuery("evt9", "u3", "1700000000", rewards),
		})
		if !core.IsInvalidSignature(err) {
			t.Fatalf("expected invalid signature for rewards %q, got: %v", rewards, err)
		}
	}
}

func TestVerify_TamperedSignedByte(t *testing.T) {
	verifier := New(Config{SharedSecret: testSecret})

	query := strings.Replace(
		signedQuery("evt9", "u3", "1700000000", "10 adFree"),
		"user_id=u3", "user_id=u4", 1,
	)
	_, err := verifier.Verify(context.Background(), core.Callback{
		Platform: core.PlatformIronSource,
		RawQuery: query,
	})
	if !core.IsInvalidSignature(err) {
		t.Fatalf("expected invalid signature, got: %v", err)
	}
}

func TestVerify_MissingSecretIsDeploymentFault(t *testing.T) {
	verifier := New(Config{})

	_, err := verifier.Verify(context.Background(), core.Callback{
		Platform: core.PlatformIronSource,
		RawQuery: signedQuery("evt9", "u3", "1700000000", "10 adFree"),
	})
	if !core.IsMisconfiguredSecret(err) {
		t.Fatalf("expected misconfigured secret, got: %v", err)
	}
}
