package license

// Error codes surfaced in validation results and over the HTTP status API.
// License operations themselves degrade to defaults instead of returning
// errors; these codes name the reason a validation came back invalid or
// downgraded.
const (
	ErrCodeExpired        = "LICENSE_EXPIRED"
	ErrCodeNotFound       = "LICENSE_NOT_FOUND"
	ErrCodeChecksumFailed = "CHECKSUM_FAILED"
	ErrCodeNetworkError   = "NETWORK_ERROR"
)
