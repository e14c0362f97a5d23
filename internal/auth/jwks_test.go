package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksJSON(pub *rsa.PublicKey) string {
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	return fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":"esmc-key-1","use":"sig","alg":"RS256","n":%q,"e":%q}]}`, n, e)
}

func newJWKSServer(t *testing.T, pub *rsa.PublicKey, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, jwksJSON(pub))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKeyCacheFetchAndParse(t *testing.T) {
	key := generateTestKey(t)
	srv := newJWKSServer(t, &key.PublicKey, nil)

	cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
	pemKey, err := cache.PEM(context.Background())
	require.NoError(t, err)

	parsed, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.N.Cmp(key.PublicKey.N))
	assert.Equal(t, key.PublicKey.E, parsed.E)
}

func TestKeyCacheServesFromCacheWithinTTL(t *testing.T) {
	key := generateTestKey(t)
	var hits atomic.Int32
	srv := newJWKSServer(t, &key.PublicKey, &hits)

	cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
	_, err := cache.PEM(context.Background())
	require.NoError(t, err)
	_, err = cache.PEM(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load(), "second call within TTL must not refetch")
}

func TestKeyCacheRefetchesPastTTL(t *testing.T) {
	key := generateTestKey(t)
	var hits atomic.Int32
	srv := newJWKSServer(t, &key.PublicKey, &hits)

	cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
	_, err := cache.PEM(context.Background())
	require.NoError(t, err)

	// Advance the clock past the TTL; a stale key must never be served.
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = cache.PEM(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestKeyCacheInvalidate(t *testing.T) {
	key := generateTestKey(t)
	var hits atomic.Int32
	srv := newJWKSServer(t, &key.PublicKey, &hits)

	cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
	_, err := cache.PEM(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	_, err = cache.PEM(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestKeyCacheTooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
	_, err := cache.PEM(context.Background())
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestKeyCacheTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL, time.Hour, 50*time.Millisecond)
	_, err := cache.PEM(context.Background())
	assert.ErrorIs(t, err, ErrKeyFetchTimeout)
}

func TestKeyCacheFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: ErrKeyFetch,
		},
		{
			name: "malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "{keys: nope")
			},
			wantErr: ErrMalformedJWKS,
		},
		{
			name: "empty key set",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"keys":[]}`)
			},
			wantErr: ErrNoKeys,
		},
		{
			name: "no RSA key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"keys":[{"kty":"EC","crv":"P-256"},{"kty":"oct"}]}`)
			},
			wantErr: ErrUnsupportedKeyType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cache := NewKeyCache(srv.URL, time.Hour, 5*time.Second)
			_, err := cache.PEM(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWKToPEMRoundTrip(t *testing.T) {
	key := generateTestKey(t)
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())

	pemKey, err := jwkToPEM(n, e)
	require.NoError(t, err)

	parsed, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.N.Cmp(key.PublicKey.N))
	assert.Equal(t, key.PublicKey.E, parsed.E)
}

func TestJWKToPEMPaddedInput(t *testing.T) {
	// Some issuers emit padded base64url; the adapter tolerates it.
	key := generateTestKey(t)
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()) + "=="
	e := "AQAB"

	_, err := jwkToPEM(n, e)
	assert.NoError(t, err)
}

func TestJWKToPEMInvalidInput(t *testing.T) {
	_, err := jwkToPEM("!!not-base64!!", "AQAB")
	assert.Error(t, err)

	_, err = jwkToPEM("", "")
	assert.Error(t, err)
}
