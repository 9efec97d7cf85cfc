package admob

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-rewards/core"
)

// keySetDocument mirrors the JSON document the network publishes at its
// key server: a list of active verification keys, each identified by a
// numeric key id and carrying a PEM-encoded EC public key.
type keySetDocument struct {
	Keys []struct {
		KeyID int64  `json:"keyId"`
		PEM   string `json:"pem"`
	} `json:"keys"`
}

// keyCache lazily fetches the published key set and memoizes parsed
// public keys by key id. Concurrent cold-start callers may fetch the
// same document twice; that duplicate work is tolerated.
type keyCache struct {
	url    string
	client core.HTTPDoer

	mu   sync.RWMutex
	keys map[int64]*ecdsa.PublicKey
}

func newKeyCache(url string, client core.HTTPDoer) *keyCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &keyCache{
		url:    strings.TrimSpace(url),
		client: client,
		keys:   map[int64]*ecdsa.PublicKey{},
	}
}

func (c *keyCache) publicKey(ctx context.Context, keyID int64) (*ecdsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[keyID]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	fetched, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for id, pub := range fetched {
		c.keys[id] = pub
	}
	key, ok = c.keys[keyID]
	c.mu.Unlock()
	if !ok {
		return nil, core.InvalidSignatureError(
			fmt.Sprintf("admob: key id %d is not in the published key set", keyID),
			map[string]any{"key_id": keyID},
		)
	}
	return key, nil
}

func (c *keyCache) fetch(ctx context.Context) (map[int64]*ecdsa.PublicKey, error) {
	if c.url == "" {
		return nil, core.MisconfiguredSecretError("admob: key server url is not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, core.WrapMisconfiguredSecret(err, "admob: build key server request", nil)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, core.WrapMisconfiguredSecret(err, "admob: fetch verification keys", nil)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, core.MisconfiguredSecretError(
			fmt.Sprintf("admob: key server responded with status %d", res.StatusCode),
			map[string]any{"status": res.StatusCode},
		)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, core.WrapMisconfiguredSecret(err, "admob: read key server response", nil)
	}

	var document keySetDocument
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, core.WrapMisconfiguredSecret(err, "admob: decode key set document", nil)
	}

	keys := make(map[int64]*ecdsa.PublicKey, len(document.Keys))
	for _, entry := range document.Keys {
		pub, err := parsePEMPublicKey(entry.PEM)
		if err != nil {
			return nil, core.WrapMisconfiguredSecret(
				err,
				"admob: parse published public key",
				map[string]any{"key_id": entry.KeyID},
			)
		}
		keys[entry.KeyID] = pub
	}
	if len(keys) == 0 {
		return nil, core.MisconfiguredSecretError("admob: key set document contained no keys", nil)
	}
	return keys, nil
}

func parsePEMPublicKey(pemText string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil {
		return nil, fmt.Errorf("admob: key entry is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("admob: key entry is not an EC public key")
	}
	return pub, nil
}
