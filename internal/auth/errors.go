package auth

import "errors"

// Key fetch errors. Each JWKS failure mode is distinct so callers can log
// and fall back precisely.
var (
	ErrKeyFetch           = errors.New("failed to fetch signing key")
	ErrKeyFetchTimeout    = errors.New("signing key fetch timed out")
	ErrTooManyRedirects   = errors.New("too many redirects fetching JWKS")
	ErrMalformedJWKS      = errors.New("JWKS response is not valid JSON")
	ErrNoKeys             = errors.New("JWKS contains no keys")
	ErrUnsupportedKeyType = errors.New("JWKS contains no supported key type")
)

// Token verification errors. Each state of the verification machine rejects
// with its own sentinel; none of them is retried within a single call.
var (
	ErrMalformedToken       = errors.New("malformed token: expected three base64url segments")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrSignatureInvalid     = errors.New("signature verification failed: token possibly forged")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenNotYetValid     = errors.New("token not yet valid")
	ErrWrongIssuer          = errors.New("token issuer mismatch")
	ErrWrongAudience        = errors.New("token audience mismatch")
)

// Backend validation errors.
var (
	// ErrBackendUnavailable marks a network-degraded validation; callers
	// fall back to local license validation, explicitly.
	ErrBackendUnavailable = errors.New("validation backend unavailable")
	ErrTokenRejected      = errors.New("token rejected by validation backend")
)
