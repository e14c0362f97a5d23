package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// maxJWKSRedirects bounds redirect following during key fetch.
const maxJWKSRedirects = 5

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// KeyCache lazily fetches the remote JWKS and caches the selected public
// key as PEM for a TTL. A key past its TTL is never served; concurrent
// refreshes are collapsed through singleflight, and the remaining races are
// benign last-write-wins cache fills.
type KeyCache struct {
	url    string
	ttl    time.Duration
	client *resty.Client
	group  singleflight.Group
	now    func() time.Time

	mu        sync.RWMutex
	pem       string
	expiresAt time.Time
}

// NewKeyCache creates a key cache for the given JWKS URL. ttl defaults to
// 1 hour and timeout to 5 seconds.
func NewKeyCache(url string, ttl, timeout time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeyCache{
		url: url,
		ttl: ttl,
		client: resty.New().
			SetTimeout(timeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxJWKSRedirects)),
		now: time.Now,
	}
}

// PEM returns the cached public key, refetching from the JWKS endpoint when
// the cache is empty or past its TTL.
func (c *KeyCache) PEM(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.pem != "" && c.now().Before(c.expiresAt) {
		cached := c.pem
		c.mu.RUnlock()
		slog.Debug("using cached JWKS public key")
		return cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("jwks", func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached key, forcing the next call to refetch.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pem = ""
	c.expiresAt = time.Time{}
}

func (c *KeyCache) fetch(ctx context.Context) (string, error) {
	start := c.now()

	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return "", classifyFetchError(err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: unexpected status %d from %s", ErrKeyFetch, resp.StatusCode(), c.url)
	}

	var set jwkSet
	if err := json.Unmarshal(resp.Body(), &set); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedJWKS, err)
	}
	if len(set.Keys) == 0 {
		return "", ErrNoKeys
	}

	// Select the first RSA key; other key types in the set are skipped.
	var selected *jwk
	for i := range set.Keys {
		if set.Keys[i].Kty == "RSA" {
			selected = &set.Keys[i]
			break
		}
	}
	if selected == nil {
		return "", fmt.Errorf("%w: no RSA key in set of %d", ErrUnsupportedKeyType, len(set.Keys))
	}

	pemKey, err := jwkToPEM(selected.N, selected.E)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	until := c.now().Add(c.ttl)
	c.mu.Lock()
	c.pem = pemKey
	c.expiresAt = until
	c.mu.Unlock()

	slog.Info("JWKS public key refreshed",
		slog.String("kid", selected.Kid),
		slog.Duration("fetch_time", c.now().Sub(start)),
		slog.Time("cache_until", until),
	)
	return pemKey, nil
}

// classifyFetchError maps transport failures to distinct sentinels: the
// redirect bound, timeouts, and everything else.
func classifyFetchError(err error) error {
	if strings.Contains(err.Error(), "redirects") {
		return fmt.Errorf("%w: %v", ErrTooManyRedirects, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrKeyFetchTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrKeyFetch, err)
}

// jwkToPEM converts an RSA JWK (base64url modulus and exponent) to a PKIX
// PEM public key. Kept as a narrow adapter so it can be swapped for a
// platform key-import primitive.
func jwkToPEM(n, e string) (string, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(n, "="))
	if err != nil {
		return "", fmt.Errorf("invalid modulus encoding: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(e, "="))
	if err != nil {
		return "", fmt.Errorf("invalid exponent encoding: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return "", errors.New("empty modulus or exponent")
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if block == nil {
		return "", errors.New("failed to encode PEM block")
	}
	return string(block), nil
}
