// Package security provides the machine-binding primitives for the ESMC
// licensing subsystem: hardware fingerprinting, fingerprint-keyed blob
// encryption, and brain-file integrity checks.
//
// # Hardware Fingerprinting
//
// The fingerprint is a double SHA-256 construction over platform, hostname,
// CPU model strings, total memory, architecture, and MAC addresses. The
// first digest covers the full inventory; the second re-combines it with
// the individual factors, so reproducing the identity requires spoofing
// every component at once. Lookups degrade to placeholders rather than
// failing; HardwareID never returns an error.
//
// # Blob Encryption
//
// Credentials are sealed with AES-256-GCM under a scrypt-derived key whose
// input keying material is the hardware fingerprint. A blob copied to a
// different machine derives a different key and fails GCM authentication,
// which is the intended lock-out behavior.
package security
