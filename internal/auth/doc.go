// Package auth implements JWT verification against the remote JWKS key set.
//
// Verification is a strict one-pass machine: fetch key, parse token shape,
// check the algorithm allow-list (RS256/ES256 only; alg:none and HMAC are
// rejected before any cryptography), verify the signature, validate exp,
// nbf, issuer, and audience. Each state fails with its own sentinel error
// and nothing is retried within a call.
//
// The public key cache is owned by the verifier instance rather than being
// process-global, so tests can run isolated verifiers with different TTLs.
// Keys past their TTL are never served; refreshes go through singleflight.
package auth
