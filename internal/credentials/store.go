// Package credentials implements the machine-locked credential store. The
// on-disk form is a JSON wrapper around an encrypted blob keyed on the
// hardware fingerprint; a blob copied between machines fails to decrypt and
// the store reports "not logged in" rather than erroring.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"esmcsdk/internal/security"
)

// Record holds the decrypted credential payload recovered on process start.
// A nil ExpiresAt means the credentials never expire (free tier logins).
type Record struct {
	Token     string     `json:"token"`
	Tier      string     `json:"tier"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// blobFile is the persisted shape: {"encrypted": "<ivhex>:<cthex>"}.
type blobFile struct {
	Encrypted string `json:"encrypted"`
}

// Store reads and writes the encrypted credential file.
type Store struct {
	path string
	fp   *security.Fingerprinter
	now  func() time.Time
}

// NewStore creates a credential store bound to the given file path and
// fingerprinter.
func NewStore(path string, fp *security.Fingerprinter) *Store {
	return &Store{path: path, fp: fp, now: time.Now}
}

// Path returns the credential file location.
func (s *Store) Path() string {
	return s.path
}

// Save encrypts the record under the current machine key and writes the
// wrapper JSON, creating the parent directory if missing.
func (s *Store) Save(rec Record) error {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	encrypted, err := security.EncryptBlob(plaintext, s.fp.HardwareID())
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(blobFile{Encrypted: encrypted}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	slog.Debug("credentials saved",
		slog.String("path", s.path),
		slog.String("email", rec.Email),
		slog.String("tier", rec.Tier),
	)
	return nil
}

// Load recovers the stored record. It returns (nil, false) when the file is
// absent and on every failure mode — corrupted file, tampering, or a blob
// produced on different hardware. Failures are logged, never propagated;
// the caller sees "not logged in".
func (s *Store) Load() (*Record, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read credential file",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var wrapper blobFile
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Encrypted == "" {
		slog.Warn("credential file is corrupted", slog.String("path", s.path))
		return nil, false
	}

	plaintext, err := security.DecryptBlob(wrapper.Encrypted, s.fp.HardwareID())
	if err != nil {
		// Wrong machine or tampered blob. Intended lock-out, fail closed.
		slog.Warn("failed to decrypt credentials, treating as not logged in",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		slog.Warn("decrypted credentials are not valid JSON",
			slog.String("path", s.path))
		return nil, false
	}
	return &rec, true
}

// Clear deletes the credential file. Deleting an absent file is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// IsExpired reports whether the record's expiry has passed. Records without
// an expiry never expire.
func (s *Store) IsExpired(rec *Record) bool {
	if rec == nil || rec.ExpiresAt == nil {
		return false
	}
	return rec.ExpiresAt.Before(s.now())
}
