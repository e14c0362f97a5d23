package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"esmcsdk/internal/security"
)

const checksumRequestTimeout = 5 * time.Second

// Manager reads and writes the plaintext license record at a fixed path and
// performs the blessing and remote checksum validations layered on top of
// it. All public operations return sentinels or structured results; none of
// them propagates a panic or an exception-style failure to the caller.
type Manager struct {
	path        string
	checksumURL string
	fp          *security.Fingerprinter
	client      *resty.Client
	metrics     *Metrics
	now         func() time.Time
}

// NewManager creates a license manager for the given file path. checksumURL
// is the remote validate-checksum endpoint; empty disables remote checks
// (they report false, the fail-closed default).
func NewManager(path, checksumURL string, fp *security.Fingerprinter) *Manager {
	return &Manager{
		path:        path,
		checksumURL: checksumURL,
		fp:          fp,
		client:      resty.New().SetTimeout(checksumRequestTimeout),
		metrics:     NewMetrics(),
		now:         time.Now,
	}
}

// Path returns the license file location.
func (m *Manager) Path() string {
	return m.path
}

// WriteResult is the structured outcome of a license write. Callers branch
// on Success instead of handling errors.
type WriteResult struct {
	Success  bool
	FilePath string
	Err      error
}

// Write builds a full license record from the user data, defaulting the
// optional fields, and overwrites the license file with pretty JSON.
func (m *Manager) Write(user UserData) WriteResult {
	rec := m.buildRecord(user)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		m.metrics.recordWrite(context.Background(), false)
		return WriteResult{Err: fmt.Errorf("failed to marshal license record: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		m.metrics.recordWrite(context.Background(), false)
		return WriteResult{Err: fmt.Errorf("failed to create license directory: %w", err)}
	}

	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		m.metrics.recordWrite(context.Background(), false)
		return WriteResult{Err: fmt.Errorf("failed to write license file: %w", err)}
	}

	slog.Info("license file written",
		slog.String("path", m.path),
		slog.String("tier", string(rec.Tier)),
		slog.String("email", rec.Email),
	)
	m.metrics.recordWrite(context.Background(), true)
	return WriteResult{Success: true, FilePath: m.path}
}

// Update overwrites the license file with the new user data. Semantically
// identical to Write: a full overwrite, never a merge.
func (m *Manager) Update(user UserData) WriteResult {
	return m.Write(user)
}

func (m *Manager) buildRecord(user UserData) Record {
	now := m.now()

	tier := user.Tier
	if tier == "" {
		tier = TierFree
	} else if !tier.Valid() {
		tier = ParseTier(string(tier))
	}

	status := user.SubscriptionStatus
	if status == "" {
		status = StatusActive
	}

	deviceID := user.CompositeDeviceID
	if deviceID == "" {
		deviceID = m.compositeDeviceID()
	}

	return Record{
		Version:             1,
		Mode:                "plaintext",
		Email:               user.Email,
		UserID:              user.UserID,
		DisplayName:         user.DisplayName,
		Tier:                tier,
		SubscriptionStatus:  status,
		SubscriptionEndDate: user.SubscriptionEndDate,
		CompositeDeviceID:   deviceID,
		Blessing:            user.Blessing,
		VercelChecksum:      user.VercelChecksum,
		IssuedAt:            now,
		LastValidated:       now,
	}
}

// compositeDeviceID derives the device-binding identifier embedded in the
// record: a fingerprint prefix plus a random suffix, so the raw hardware
// fingerprint never appears in the plaintext file.
func (m *Manager) compositeDeviceID() string {
	hw := m.fp.HardwareID()
	if len(hw) > 16 {
		hw = hw[:16]
	}
	return hw + "-" + uuid.NewString()[:8]
}

// Read returns the license record, or nil when the file is missing or
// unparseable (logged, not raised). When the subscription end date has
// passed, the returned copy is downgraded to FREE/expired; the on-disk
// file is never mutated by a read, so repeated reads are idempotent.
func (m *Manager) Read() *Record {
	ctx := context.Background()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read license file",
				slog.String("path", m.path),
				slog.String("error", err.Error()),
			)
		}
		m.metrics.recordRead(ctx, "missing")
		return nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("license file is corrupted",
			slog.String("path", m.path),
			slog.String("error", err.Error()),
		)
		m.metrics.recordRead(ctx, "corrupted")
		return nil
	}

	if rec.SubscriptionEndDate != nil && rec.SubscriptionEndDate.Before(m.now()) {
		slog.Warn("subscription expired, downgrading to FREE in read path",
			slog.String("email", rec.Email),
			slog.Time("subscription_end", *rec.SubscriptionEndDate),
		)
		downgraded := rec
		downgraded.Tier = TierFree
		downgraded.SubscriptionStatus = StatusExpired
		m.metrics.recordDowngrade(ctx)
		m.metrics.recordRead(ctx, "downgraded")
		return &downgraded
	}

	m.metrics.recordRead(ctx, "ok")
	return &rec
}

// Delete removes the license file and reports whether a deletion occurred.
func (m *Manager) Delete() bool {
	if err := os.Remove(m.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to delete license file",
				slog.String("path", m.path),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	slog.Info("license file deleted", slog.String("path", m.path))
	return true
}

// Validation is the normalized startup quick-check result. ErrorCode names
// the reason for an invalid or downgraded result, empty otherwise.
type Validation struct {
	Valid         bool      `json:"valid"`
	Tier          Tier      `json:"tier"`
	Status        string    `json:"status"`
	Email         string    `json:"email,omitempty"`
	LastValidated time.Time `json:"lastValidated,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
}

// Validate wraps Read and normalizes the no-file case to an invalid FREE
// result so callers never branch on nil.
func (m *Manager) Validate() Validation {
	rec := m.Read()
	if rec == nil {
		return Validation{
			Valid:     false,
			Tier:      TierFree,
			Status:    StatusMissing,
			ErrorCode: ErrCodeNotFound,
		}
	}
	v := Validation{
		Valid:         true,
		Tier:          rec.Tier,
		Status:        rec.SubscriptionStatus,
		Email:         rec.Email,
		LastValidated: rec.LastValidated,
	}
	if rec.SubscriptionStatus == StatusExpired {
		v.ErrorCode = ErrCodeExpired
	}
	return v
}

// VerifyBlessing performs the structural blessing check: every field
// present and the expiry not yet passed. This is deliberately not a
// cryptographic verification; it is the cheap tamper-resistance layer used
// when no network call is available. The JWT verifier is the strict layer.
func (m *Manager) VerifyBlessing(b *Blessing) bool {
	if b == nil {
		return false
	}
	if b.Signature == "" || b.Tier == "" || b.CompositeDeviceID == "" || b.ExpiresAt.IsZero() {
		slog.Warn("blessing token missing required fields")
		return false
	}
	if !b.ExpiresAt.After(m.now()) {
		slog.Warn("blessing token expired",
			slog.Time("expires_at", b.ExpiresAt))
		return false
	}
	return true
}

type checksumResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateVercelChecksum asks the remote authority whether the server-
// rotated checksum is still current for (email, tier, rotation). Network
// and parse failures return false: the check fails closed, and callers fall
// back to local blessing validation for offline scenarios.
func (m *Manager) ValidateVercelChecksum(ctx context.Context, email string, tier Tier, cs *Checksum) bool {
	if cs == nil || m.checksumURL == "" {
		return false
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"email":    email,
			"tier":     string(tier),
			"rotation": cs.Rotation,
			"checksum": cs.Value,
		}).
		Get(m.checksumURL)
	if err != nil {
		slog.Warn("checksum validation request failed, failing closed",
			slog.String("error", err.Error()))
		m.metrics.recordChecksumFailure(ctx, ErrCodeNetworkError)
		return false
	}
	if !resp.IsSuccess() {
		slog.Warn("checksum validation returned non-success status",
			slog.Int("status", resp.StatusCode()))
		m.metrics.recordChecksumFailure(ctx, "status")
		return false
	}

	var result checksumResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		slog.Warn("checksum validation response is not valid JSON",
			slog.String("error", err.Error()))
		m.metrics.recordChecksumFailure(ctx, "parse")
		return false
	}

	if !result.Valid {
		slog.Warn("checksum rejected by validation authority",
			slog.String("email", email),
			slog.String("tier", string(tier)),
			slog.String("rotation", cs.Rotation),
			slog.String("reason", result.Error),
		)
		m.metrics.recordChecksumFailure(ctx, ErrCodeChecksumFailed)
	}
	return result.Valid
}
