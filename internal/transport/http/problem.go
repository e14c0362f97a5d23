package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"esmcsdk/internal/auth"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions into the top-level object.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error response.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// NewValidationProblem reports a request body that failed binding or
// validation.
func NewValidationProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(
		http.StatusBadRequest,
		"/errors/validation-failed",
		"Request Validation Failed",
		detail,
		instance,
	)
}

// NewRateLimitProblem reports a client that exceeded the license check rate
// limit.
func NewRateLimitProblem(instance string) *ProblemDetails {
	return NewProblemDetails(
		http.StatusTooManyRequests,
		"/errors/rate-limit-exceeded",
		"Rate Limit Exceeded",
		"Too many license checks; try again later.",
		instance,
	)
}

// NewTierProblem reports a caller whose current tier is below the required
// one.
func NewTierProblem(required, current, instance string) *ProblemDetails {
	return NewProblemDetails(
		http.StatusForbidden,
		"/errors/insufficient-tier",
		"Insufficient Subscription Tier",
		"This feature requires a higher subscription tier.",
		instance,
	).WithExtension("required_tier", required).
		WithExtension("current_tier", current)
}

// problemFromAuthError maps verification error sentinels onto problem
// responses. Client mistakes are 400, verification failures 401, and
// infrastructure trouble 503 so callers can distinguish "forged" from
// "offline".
func problemFromAuthError(err error, instance string) *ProblemDetails {
	switch {
	case errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrUnsupportedAlgorithm):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/malformed-token",
			"Malformed Token",
			err.Error(),
			instance,
		)
	case errors.Is(err, auth.ErrTokenExpired):
		return NewProblemDetails(
			http.StatusUnauthorized,
			"/errors/token-expired",
			"Token Expired",
			err.Error(),
			instance,
		)
	case errors.Is(err, auth.ErrSignatureInvalid),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongIssuer),
		errors.Is(err, auth.ErrWrongAudience),
		errors.Is(err, auth.ErrTokenRejected):
		return NewProblemDetails(
			http.StatusUnauthorized,
			"/errors/token-rejected",
			"Token Verification Failed",
			err.Error(),
			instance,
		)
	case errors.Is(err, auth.ErrKeyFetch),
		errors.Is(err, auth.ErrKeyFetchTimeout),
		errors.Is(err, auth.ErrTooManyRedirects),
		errors.Is(err, auth.ErrMalformedJWKS),
		errors.Is(err, auth.ErrNoKeys),
		errors.Is(err, auth.ErrUnsupportedKeyType),
		errors.Is(err, auth.ErrBackendUnavailable):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			"/errors/verification-unavailable",
			"Verification Temporarily Unavailable",
			err.Error(),
			instance,
		)
	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal",
			"Internal Server Error",
			err.Error(),
			instance,
		)
	}
}
