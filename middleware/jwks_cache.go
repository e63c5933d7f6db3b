package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/opendots/opendots-backend/logger"
)

// keyGetter resolves a signing key by kid.
type keyGetter interface {
	GetKey(ctx context.Context, kid string) (jwk.Key, error)
}

// JWKSCache is a thread-safe cache of the Supabase Auth signing keys.
type JWKSCache struct {
	keys        map[string]jwk.Key
	expiresAt   time.Time
	mutex       sync.RWMutex
	refreshLock sync.Mutex
	jwksURL     string
	anonKey     string
	ttl         time.Duration
	httpClient  *http.Client
}

var _ keyGetter = (*JWKSCache)(nil)

// NewJWKSCache creates a cache that is filled on first use.
func NewJWKSCache(jwksURL, anonKey string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:       make(map[string]jwk.Key),
		expiresAt:  time.Now(),
		jwksURL:    jwksURL,
		anonKey:    anonKey,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the key for kid, refreshing the set when it is missing or
// the cache has expired.
func (c *JWKSCache) GetKey(ctx context.Context, kid string) (jwk.Key, error) {
	c.mutex.RLock()
	key, found := c.keys[kid]
	expired := time.Now().After(c.expiresAt)
	c.mutex.RUnlock()

	if found && !expired {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		logger.GetLogger().Errorw("Failed to refresh JWKS cache", "kid", kid, "error", err)
		return nil, fmt.Errorf("refresh jwks for kid %s: %w", kid, err)
	}

	c.mutex.RLock()
	key, found = c.keys[kid]
	c.mutex.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: kid %q", ErrJWKSKeyNotFound, kid)
	}
	return key, nil
}

// refresh fetches the key set. Concurrent callers wait for a single fetch.
func (c *JWKSCache) refresh(ctx context.Context) error {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	c.mutex.RLock()
	fresh := time.Now().Before(c.expiresAt) && len(c.keys) > 0
	c.mutex.RUnlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("create jwks request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read jwks response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return fmt.Errorf("parse jwks: %w", err)
	}

	keys := make(map[string]jwk.Key, set.Len())
	for it := set.Keys(ctx); it.Next(ctx); {
		key := it.Pair().Value.(jwk.Key)
		if kid := key.KeyID(); kid != "" {
			keys[kid] = key
		}
	}

	c.mutex.Lock()
	c.keys = keys
	c.expiresAt = time.Now().Add(c.ttl)
	c.mutex.Unlock()

	logger.GetLogger().Infow("JWKS cache refreshed", "keys_cached", len(keys))
	return nil
}
