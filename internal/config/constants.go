package config

import "time"

// Application constants for the ESMC SDK licensing subsystem.
const (
	AppName    = "ESMC SDK"
	AppVersion = "1.4.0"

	// File names
	CredentialsFileName = "credentials.json"
	ConfigDirName       = "esmc"

	// Network timeouts
	DefaultHTTPTimeout = 5 * time.Second

	// Key cache
	PublicKeyCacheTTL = 1 * time.Hour

	// Rate limiting
	LicenseCheckRateLimit = 10 // license checks per minute
)
