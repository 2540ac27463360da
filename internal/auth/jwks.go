package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// jwksDocument is the wire shape of a JSON Web Key Set.
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyCache fetches signing-key sets from an issuer's well-known JWKS
// endpoint and reuses them for a bounded time. A fetch failure with a cold
// or expired cache fails the lookup — a stale set is never served past its
// TTL (fail closed).
type KeyCache struct {
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]keyCacheEntry
}

type keyCacheEntry struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyCache creates a key cache with the given TTL.
// A nil client defaults to one with a 10 second timeout.
func NewKeyCache(client *http.Client, ttl time.Duration) *KeyCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeyCache{
		client:  client,
		ttl:     ttl,
		entries: make(map[string]keyCacheEntry),
	}
}

// Keys returns the issuer's current signing keys by key ID, fetching the set
// when the cache is cold or past its TTL.
func (c *KeyCache) Keys(ctx context.Context, issuer string) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[issuer]; ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.keys, nil
	}

	keys, err := c.fetch(ctx, issuer)
	if err != nil {
		return nil, err
	}

	c.entries[issuer] = keyCacheEntry{keys: keys, fetchedAt: time.Now()}
	return keys, nil
}

func (c *KeyCache) fetch(ctx context.Context, issuer string) (map[string]*rsa.PublicKey, error) {
	url := strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwks request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwks response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode jwks document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaPublicKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jwks key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("jwks document for %s contains no RSA keys", issuer)
	}
	return keys, nil
}

// rsaPublicKey assembles an RSA public key from base64url-encoded modulus and
// exponent components. Providers differ on whether they pad, so padding is
// normalized before decoding.
func rsaPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(n, "="))
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(e, "="))
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}

	exponent := 0
	for _, b := range eb {
		exponent = exponent<<8 | int(b)
	}
	if exponent == 0 {
		return nil, fmt.Errorf("zero exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: exponent,
	}, nil
}
