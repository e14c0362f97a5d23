package config

import (
	"fmt"
	"os"
	"path/filepath"

	"esmcsdk/internal/license"
)

// CredentialsPath returns the fixed per-user credential file location:
// <user config dir>/esmc/credentials.json.
func CredentialsPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(base, ConfigDirName, CredentialsFileName), nil
}

// LicensePath resolves the license file location. An explicit directory in
// the configuration wins; otherwise the project root is discovered by
// walking up from the working directory. The cwd decision is made here, at
// the boundary, so the license package stays a pure function of its inputs.
func LicensePath(cfg *Config) string {
	if cfg != nil && cfg.License.Dir != "" {
		return filepath.Join(cfg.License.Dir, license.LicenseFileName)
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return license.DefaultLicensePath(wd)
}
