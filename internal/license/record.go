package license

import "time"

// Subscription status values stored in the license record.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusMissing = "missing"
)

// Blessing is the tamper-evidence marker embedded in a license record. It
// binds a tier to a device and an expiry. Verification here is structural
// only; full cryptographic verification is the JWT verifier's job.
type Blessing struct {
	Tier              string    `json:"tier"`
	ExpiresAt         time.Time `json:"expiresAt"`
	CompositeDeviceID string    `json:"compositeDeviceId"`
	Signature         string    `json:"signature"`
}

// Checksum is the server-rotated freshness value revalidated against the
// remote authority. Distinct from the blessing signature: the server can
// revoke a license by rotating it.
type Checksum struct {
	Value    string `json:"value"`
	Rotation string `json:"rotation"`
}

// Record is the plaintext license file schema. Stored unobfuscated at a
// fixed path so process startup can read it without any decryption; trust
// comes from the blessing and checksum layers, not secrecy.
type Record struct {
	Version             int        `json:"version"`
	Mode                string     `json:"mode"`
	Email               string     `json:"email"`
	UserID              string     `json:"userId"`
	DisplayName         string     `json:"displayName"`
	Tier                Tier       `json:"tier"`
	SubscriptionStatus  string     `json:"subscriptionStatus"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
	CompositeDeviceID   string     `json:"compositeDeviceId"`
	Blessing            *Blessing  `json:"blessing,omitempty"`
	VercelChecksum      *Checksum  `json:"vercelChecksum,omitempty"`
	IssuedAt            time.Time  `json:"issuedAt"`
	LastValidated       time.Time  `json:"lastValidated"`
}

// UserData is the caller-supplied input for writing a license record.
// Optional fields are defaulted by the manager.
type UserData struct {
	Email               string
	UserID              string
	DisplayName         string
	Tier                Tier
	SubscriptionStatus  string
	SubscriptionEndDate *time.Time
	CompositeDeviceID   string
	Blessing            *Blessing
	VercelChecksum      *Checksum
}
