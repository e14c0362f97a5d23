package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"esmcsdk/internal/auth"
	"esmcsdk/internal/config"
	"esmcsdk/internal/credentials"
	"esmcsdk/internal/license"
	"esmcsdk/internal/middleware"
	"esmcsdk/internal/security"
	transport "esmcsdk/internal/transport/http"
)

func main() {
	verifyToken := flag.String("verify", "", "verify a JWT and persist license + credentials")
	serveAddr := flag.String("serve", "", "serve the license HTTP API on this address (e.g. :8080)")
	asJSON := flag.Bool("json", false, "print status as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	fp := security.NewFingerprinter()

	credsPath, err := config.CredentialsPath()
	if err != nil {
		slog.Error("Failed to resolve credentials path", "error", err)
		os.Exit(1)
	}
	creds := credentials.NewStore(credsPath, fp)
	manager := license.NewManager(config.LicensePath(cfg), cfg.License.ChecksumURL, fp)

	verifier := auth.NewVerifier(auth.Options{
		JWKSURL:     cfg.Auth.JWKSURL,
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		KeyTTL:      cfg.Auth.KeyTTL,
		HTTPTimeout: cfg.Auth.HTTPTimeout,
		DevBypass:   cfg.Auth.DevSkipVerify,
		Production:  cfg.IsProduction(),
	})

	switch {
	case *serveAddr != "":
		serve(*serveAddr, manager, verifier, creds)
	case *verifyToken != "":
		verify(cfg, manager, verifier, creds, *verifyToken)
	default:
		printStatus(manager, creds, fp, *asJSON)
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func printStatus(manager *license.Manager, creds *credentials.Store, fp *security.Fingerprinter, asJSON bool) {
	validation := manager.Validate()
	_, loggedIn := creds.Load()

	if asJSON {
		out := map[string]any{
			"license":     validation,
			"logged_in":   loggedIn,
			"hardware_id": fp.HardwareID(),
		}
		json.NewEncoder(os.Stdout).Encode(out)
		return
	}

	fmt.Printf("%s v%s\n\n", config.AppName, config.AppVersion)
	fmt.Printf("Hardware ID:  %s\n", fp.HardwareID())
	fmt.Printf("License file: %s\n", manager.Path())
	if validation.Valid {
		fmt.Printf("Tier:         %s (%s)\n", validation.Tier, validation.Status)
		fmt.Printf("Email:        %s\n", validation.Email)
	} else {
		fmt.Printf("Tier:         %s (no valid license)\n", validation.Tier)
	}
	if loggedIn {
		fmt.Println("Credentials:  present")
	} else {
		fmt.Println("Credentials:  not logged in")
	}
}

func verify(cfg *config.Config, manager *license.Manager, verifier *auth.Verifier, creds *credentials.Store, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := verifier.VerifyAndExtractUserData(ctx, token)
	if err != nil {
		slog.Error("Token verification failed", "error", err)
		os.Exit(1)
	}

	var expiresAt *time.Time
	if user.Exp > 0 {
		t := time.Unix(user.Exp, 0).UTC()
		expiresAt = &t
	}

	result := manager.Write(license.UserData{
		Email:               user.Email,
		UserID:              user.UserID,
		DisplayName:         user.Name,
		Tier:                user.Tier,
		SubscriptionEndDate: expiresAt,
	})
	if !result.Success {
		slog.Error("License write failed", "error", result.Err)
		os.Exit(1)
	}

	if err := creds.Save(credentials.Record{
		Token:     token,
		Tier:      string(user.Tier),
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: expiresAt,
	}); err != nil {
		slog.Error("Credential save failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Verified %s (%s), license written to %s\n", user.Email, user.Tier, result.FilePath)
}

func serve(addr string, manager *license.Manager, verifier *auth.Verifier, creds *credentials.Store) {
	handler := transport.NewLicenseHandler(manager, verifier, creds, slog.Default())

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(config.LicenseCheckRateLimit))
	r.Get("/api/license/status", handler.GetStatus)
	r.Post("/api/auth/verify", handler.Verify)
	r.Delete("/api/credentials", handler.ClearCredentials)

	slog.Info("Serving license API", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
