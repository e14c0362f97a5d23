package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"esmcsdk/internal/auth"
	"esmcsdk/internal/credentials"
	"esmcsdk/internal/license"
)

// LicenseHandler exposes the licensing subsystem over HTTP: status checks,
// token verification with persistence, and credential teardown.
type LicenseHandler struct {
	manager  *license.Manager
	verifier *auth.Verifier
	creds    *credentials.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(manager *license.Manager, verifier *auth.Verifier, creds *credentials.Store, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		manager:  manager,
		verifier: verifier,
		creds:    creds,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "license")),
	}
}

// VerifyRequest is the POST /verify payload.
type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyResponse is returned after a token was verified and persisted.
type VerifyResponse struct {
	Success     bool           `json:"success"`
	User        *auth.UserData `json:"user"`
	LicensePath string         `json:"license_path,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ClearResponse is returned after credential and license teardown.
type ClearResponse struct {
	CredentialsCleared bool `json:"credentials_cleared"`
	LicenseDeleted     bool `json:"license_deleted"`
}

// Routes returns a chi router for the license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", h.GetStatus)
	r.Post("/verify", h.Verify)
	r.Delete("/credentials", h.ClearCredentials)

	return r
}

// GetStatus handles GET /status. It never fails: a missing or corrupt
// license file renders as an invalid FREE result.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	validation := h.manager.Validate()

	h.logger.InfoContext(ctx, "license status checked",
		slog.String("request_id", reqID),
		slog.Bool("valid", validation.Valid),
		slog.String("tier", string(validation.Tier)),
		slog.String("status", validation.Status),
	)

	render.JSON(w, r, validation)
}

// Verify handles POST /verify: verify the bearer token, then persist both
// the license record and the machine-locked credentials.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var req VerifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, NewValidationProblem("request body is not valid JSON", r.URL.Path))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, NewValidationProblem("token is required", r.URL.Path))
		return
	}

	user, err := h.verifier.VerifyAndExtractUserData(ctx, req.Token)
	if err != nil {
		h.logger.WarnContext(ctx, "token verification failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, problemFromAuthError(err, r.URL.Path))
		return
	}

	var expiresAt *time.Time
	if user.Exp > 0 {
		t := time.Unix(user.Exp, 0).UTC()
		expiresAt = &t
	}

	result := h.manager.Write(license.UserData{
		Email:               user.Email,
		UserID:              user.UserID,
		DisplayName:         user.Name,
		Tier:                user.Tier,
		SubscriptionEndDate: expiresAt,
	})
	if !result.Success {
		h.logger.ErrorContext(ctx, "license write failed",
			slog.String("request_id", reqID),
			slog.String("error", result.Err.Error()),
		)
		render.Render(w, r, NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/license-write-failed",
			"License Write Failed",
			result.Err.Error(),
			r.URL.Path,
		))
		return
	}

	if err := h.creds.Save(credentials.Record{
		Token:     req.Token,
		Tier:      string(user.Tier),
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: expiresAt,
	}); err != nil {
		// The license file landed but the credential blob did not. Report
		// the failure; the client can retry verification.
		h.logger.ErrorContext(ctx, "credential save failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/credential-save-failed",
			"Credential Save Failed",
			err.Error(),
			r.URL.Path,
		))
		return
	}

	h.logger.InfoContext(ctx, "token verified and persisted",
		slog.String("request_id", reqID),
		slog.String("email", user.Email),
		slog.String("tier", string(user.Tier)),
	)

	render.JSON(w, r, VerifyResponse{
		Success:     true,
		User:        user,
		LicensePath: result.FilePath,
		Timestamp:   time.Now().UTC(),
	})
}

// ClearCredentials handles DELETE /credentials: remove the credential blob
// and the license file. Both removals are idempotent.
func (h *LicenseHandler) ClearCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	credsCleared := true
	if err := h.creds.Clear(); err != nil {
		credsCleared = false
		h.logger.ErrorContext(ctx, "credential clear failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
	}
	licenseDeleted := h.manager.Delete()

	h.logger.InfoContext(ctx, "credentials cleared",
		slog.String("request_id", reqID),
		slog.Bool("credentials_cleared", credsCleared),
		slog.Bool("license_deleted", licenseDeleted),
	)

	render.JSON(w, r, ClearResponse{
		CredentialsCleared: credsCleared,
		LicenseDeleted:     licenseDeleted,
	})
}
