package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"esmcsdk/internal/license"
)

// allowedAlgorithms is the signature algorithm allow-list. Everything else,
// including "none" and the HMAC family, is rejected before any signature
// work happens. This closes the alg:none and weak-HMAC forgery paths.
var allowedAlgorithms = []string{"RS256", "ES256"}

// Options configures a Verifier.
type Options struct {
	JWKSURL  string
	Issuer   string
	Audience string
	// KeyTTL bounds how long a fetched public key is served without a
	// refetch. Defaults to 1 hour.
	KeyTTL time.Duration
	// HTTPTimeout applies to JWKS fetches. Defaults to 5 seconds.
	HTTPTimeout time.Duration
	// DevBypass enables signature-less payload decoding. It is combined
	// with Production at construction time: a production build cannot
	// activate the bypass no matter what the flag says.
	DevBypass  bool
	Production bool
}

// Verifier validates JWT signatures against the remote key set and the
// standard claims against the expected issuer and audience.
type Verifier struct {
	keys      *KeyCache
	issuer    string
	audience  string
	devBypass bool
	now       func() time.Time
}

// NewVerifier creates a verifier. The dev bypass capability is resolved
// here, once; hot-path verification never re-reads environment state.
func NewVerifier(opts Options) *Verifier {
	return &Verifier{
		keys:      NewKeyCache(opts.JWKSURL, opts.KeyTTL, opts.HTTPTimeout),
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		devBypass: opts.DevBypass && !opts.Production,
		now:       time.Now,
	}
}

// Payload is the decoded token payload, produced only by successful
// verification (or the dev bypass). Never persisted as-is.
type Payload struct {
	UserID     string
	Email      string
	Tier       string
	Name       string
	HardwareID string
	Issuer     string
	Audience   []string
	Exp        int64
	Iat        int64
}

// tokenClaims is the wire shape of the ESMC token payload.
type tokenClaims struct {
	Email      string `json:"email,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Name       string `json:"name,omitempty"`
	HardwareID string `json:"hardwareId,omitempty"`
	jwt.RegisteredClaims
}

// Verify runs the full verification machine: fetch key, parse token shape,
// check the algorithm allow-list, verify the signature, validate claims.
// A failure at any state rejects immediately with a distinct error; there
// are no retries within a single call.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	pemKey, err := v.keys.PEM(ctx)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: got %d segments", ErrMalformedToken, len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header is not base64url", ErrMalformedToken)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: header is not valid JSON", ErrMalformedToken)
	}
	if !algorithmAllowed(header.Alg) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, header.Alg)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("%w: bad cached key: %v", ErrKeyFetch, err)
	}

	claims := &tokenClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return publicKey, nil },
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	// Issuer and audience are validated manually so that each mismatch
	// carries its own message. Both checks apply only when the claim is
	// present in the token.
	if claims.Issuer != "" && v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrWrongIssuer, claims.Issuer, v.issuer)
	}
	if len(claims.Audience) > 0 && v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return nil, fmt.Errorf("%w: expected %q", ErrWrongAudience, v.audience)
	}

	return payloadFromClaims(claims), nil
}

// VerifyAndExtractUserData verifies the token and reshapes the payload into
// the user data used to populate the credential and license stores. Tier
// defaults to FREE and the display name to the email's local part.
func (v *Verifier) VerifyAndExtractUserData(ctx context.Context, token string) (*UserData, error) {
	var payload *Payload
	var err error

	if v.devBypass {
		slog.Warn("DEV BYPASS ACTIVE: decoding token without signature verification; never use in production")
		payload, err = v.DecodeUnverified(token)
	} else {
		payload, err = v.Verify(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	tier := license.TierFree
	if payload.Tier != "" {
		tier = license.ParseTier(payload.Tier)
	}

	name := payload.Name
	if name == "" {
		name = emailLocalPart(payload.Email)
	}

	return &UserData{
		Email:      payload.Email,
		UserID:     payload.UserID,
		Tier:       tier,
		Name:       name,
		Exp:        payload.Exp,
		Iat:        payload.Iat,
		Issuer:     payload.Issuer,
		HardwareID: payload.HardwareID,
	}, nil
}

// UserData is the reshaped verification result.
type UserData struct {
	Email      string       `json:"email"`
	UserID     string       `json:"userId"`
	Tier       license.Tier `json:"tier"`
	Name       string       `json:"name"`
	Exp        int64        `json:"exp"`
	Iat        int64        `json:"iat"`
	Issuer     string       `json:"issuer"`
	HardwareID string       `json:"hardwareId,omitempty"`
}

// DevBypassEnabled reports whether this verifier was built with the
// signature bypass capability. Informational; the decision was made at
// construction.
func (v *Verifier) DevBypassEnabled() bool {
	return v.devBypass
}

// DecodeUnverified decodes the token payload without verifying the
// signature. Only the dev bypass path uses this.
func (v *Verifier) DecodeUnverified(token string) (*Payload, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return payloadFromClaims(claims), nil
}

func payloadFromClaims(claims *tokenClaims) *Payload {
	p := &Payload{
		UserID:     claims.Subject,
		Email:      claims.Email,
		Tier:       claims.Tier,
		Name:       claims.Name,
		HardwareID: claims.HardwareID,
		Issuer:     claims.Issuer,
		Audience:   claims.Audience,
	}
	if claims.ExpiresAt != nil {
		p.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		p.Iat = claims.IssuedAt.Unix()
	}
	return p
}

// mapJWTError translates golang-jwt sentinel errors into the verifier's
// taxonomy so every rejection reason stays distinct and human readable.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		// Unverifiable tokens (wrong key type for the algorithm, truncated
		// signature) are treated as forgery attempts, not malformed input.
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
}

func algorithmAllowed(alg string) bool {
	for _, allowed := range allowedAlgorithms {
		if alg == allowed {
			return true
		}
	}
	return false
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}

func emailLocalPart(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return email
}
