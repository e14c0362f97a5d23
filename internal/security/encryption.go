package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// SCRYPT parameters for credential key derivation (OWASP recommended
// minimums). The derived key is deterministic for a given hardware ID so
// that credentials written on one boot decrypt on the next.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32 // AES-256
)

// credentialSalt is the fixed application salt mixed into key derivation.
// The machine binding comes from the hardware ID, not from salt secrecy.
var credentialSalt = []byte("esmc-credential-salt-v1")

const gcmNonceSize = 12

// ErrMalformedBlob is returned when an encrypted blob does not have the
// expected ivhex:ciphertexthex shape.
var ErrMalformedBlob = errors.New("malformed encrypted blob")

// ErrDecryptionFailed is returned for any decryption failure: wrong machine
// key, truncated ciphertext, or tampering. Callers must treat all three the
// same and fail closed.
var ErrDecryptionFailed = errors.New("decryption failed")

// deriveKey stretches the hardware fingerprint into an AES-256 key.
func deriveKey(hardwareID string) ([]byte, error) {
	if hardwareID == "" {
		return nil, errors.New("hardware ID cannot be empty")
	}
	key, err := scrypt.Key([]byte(hardwareID), credentialSalt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return key, nil
}

// EncryptBlob encrypts plaintext under a key derived from the hardware ID
// and returns the ivhex:ciphertexthex wire form. The ciphertext carries the
// GCM authentication tag, so tampering and foreign-machine decryption both
// fail at Open time.
func EncryptBlob(plaintext []byte, hardwareID string) (string, error) {
	if len(plaintext) == 0 {
		return "", errors.New("plaintext cannot be empty")
	}

	key, err := deriveKey(hardwareID)
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptBlob reverses EncryptBlob. Any structural or cryptographic failure
// returns an error; no partial plaintext ever escapes.
func DecryptBlob(encoded, hardwareID string) ([]byte, error) {
	ivHex, ctHex, ok := strings.Cut(encoded, ":")
	if !ok || ivHex == "" || ctHex == "" {
		return nil, ErrMalformedBlob
	}

	nonce, err := hex.DecodeString(ivHex)
	if err != nil || len(nonce) != gcmNonceSize {
		return nil, ErrMalformedBlob
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, ErrMalformedBlob
	}

	key, err := deriveKey(hardwareID)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SecureCompare performs constant-time comparison to prevent timing attacks.
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
