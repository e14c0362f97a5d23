package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// BackendValidator calls the remote token validation endpoint, which checks
// the token against live subscription state and binds it to the hardware
// ID. A network failure here is a degradation, not a denial: the error is
// marked so callers fall back to local license validation.
type BackendValidator struct {
	url    string
	client *resty.Client
}

// NewBackendValidator creates a validator for the given endpoint URL.
// timeout defaults to 5 seconds.
func NewBackendValidator(url string, timeout time.Duration) *BackendValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BackendValidator{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// BackendUser is the subscription state the backend returns for a valid
// token.
type BackendUser struct {
	Tier      string     `json:"tier"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type validateRequest struct {
	Token      string `json:"token"`
	HardwareID string `json:"hardwareId"`
}

type validateResponse struct {
	Valid bool        `json:"valid"`
	User  BackendUser `json:"user"`
}

// Validate posts the token and hardware ID to the backend. Rejection and
// unavailability are distinct errors; only the latter justifies an offline
// fallback.
func (b *BackendValidator) Validate(ctx context.Context, token, hardwareID string) (*BackendUser, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(validateRequest{Token: token, HardwareID: hardwareID}).
		Post(b.url)
	if err != nil {
		slog.Warn("backend token validation unreachable",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode())
	}

	var result validateResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrBackendUnavailable, err)
	}
	if !result.Valid {
		return nil, ErrTokenRejected
	}
	return &result.User, nil
}
