package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("jwks key not found")

// JWKSClient caches the RSA signing keys published at a JWKS endpoint.
// Concurrent misses share one fetch; a failed fetch keeps the previous keys.
type JWKSClient struct {
	url    string
	ttl    time.Duration
	client *http.Client
	group  singleflight.Group

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func NewJWKSClient(url string, ttl time.Duration, client *http.Client) *JWKSClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &JWKSClient{url: url, ttl: ttl, client: client}
}

func (c *JWKSClient) Get(keyID string) (*rsa.PublicKey, error) {
	key, fresh := c.lookup(keyID)
	if key != nil && fresh {
		return key, nil
	}
	if err := c.refresh(context.Background()); err != nil {
		if key != nil {
			return key, nil
		}
		return nil, err
	}
	if key, _ = c.lookup(keyID); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
}

// Ping fetches the key set; used as a readiness check.
func (c *JWKSClient) Ping(ctx context.Context) error {
	return c.refresh(ctx)
}

func (c *JWKSClient) lookup(keyID string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[keyID], time.Since(c.fetched) < c.ttl
}

func (c *JWKSClient) refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("keys", func() (any, error) {
		keys, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.keys, c.fetched = keys, time.Now()
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

func (c *JWKSClient) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var set struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if pub, err := rsaPublicKey(k.N, k.E); err == nil {
			keys[k.Kid] = pub
		}
	}
	return keys, nil
}

func rsaPublicKey(modulus, exponent string) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(modulus)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(exponent)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(e)
	if len(n) == 0 || !exp.IsInt64() || exp.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("invalid jwk")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
