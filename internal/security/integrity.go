package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileChecksum returns the SHA-256 hex digest of a file's contents.
// Used by the brain-file discovery routine to compare shipped data files
// against the tier-specific expected constants.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyBrainFile compares a file's checksum against the expected constant
// in constant time. A read failure is an error, not a mismatch, so callers
// can distinguish "file missing" from "file altered".
func VerifyBrainFile(path, expected string) (bool, error) {
	actual, err := FileChecksum(path)
	if err != nil {
		return false, err
	}
	return SecureCompare([]byte(actual), []byte(expected)), nil
}
