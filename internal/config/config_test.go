package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBrainChecksums satisfies the required brain constants so Load can get
// past fail-fast validation.
func setBrainChecksums(t *testing.T) {
	t.Helper()
	t.Setenv("ESMC_BRAIN_CHECKSUM_FREE", "sum-free")
	t.Setenv("ESMC_BRAIN_CHECKSUM_PRO", "sum-pro")
	t.Setenv("ESMC_BRAIN_CHECKSUM_MAX", "sum-max")
	t.Setenv("ESMC_BRAIN_CHECKSUM_VIP", "sum-vip")
}

func TestLoadDefaults(t *testing.T) {
	setBrainChecksums(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://esmc-sdk.com/.well-known/jwks.json", cfg.Auth.JWKSURL)
	assert.Equal(t, "esmc-sdk.com", cfg.Auth.Issuer)
	assert.Equal(t, "esmc-client", cfg.Auth.Audience)
	assert.Equal(t, time.Hour, cfg.Auth.KeyTTL)
	assert.Equal(t, 5*time.Second, cfg.Auth.HTTPTimeout)
	assert.False(t, cfg.Auth.DevSkipVerify)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFailsWithoutBrainChecksums(t *testing.T) {
	// Deliberately leave ESMC_BRAIN_CHECKSUM_* unset. t.Setenv registers
	// the cleanup that restores any values from the outer environment.
	for _, key := range []string{
		"ESMC_BRAIN_CHECKSUM_FREE",
		"ESMC_BRAIN_CHECKSUM_PRO",
		"ESMC_BRAIN_CHECKSUM_MAX",
		"ESMC_BRAIN_CHECKSUM_VIP",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	_, err := Load()
	require.Error(t, err, "missing brain checksums must abort startup")
}

func TestLoadFromEnvironment(t *testing.T) {
	setBrainChecksums(t)
	t.Setenv("ESMC_ENV", "production")
	t.Setenv("ESMC_AUTH_JWKS_URL", "https://keys.example.com/jwks.json")
	t.Setenv("ESMC_AUTH_KEY_TTL", "30m")
	t.Setenv("ESMC_AUTH_DEV_SKIP_VERIFY", "true")
	t.Setenv("ESMC_LICENSE_DIR", "/opt/esmc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://keys.example.com/jwks.json", cfg.Auth.JWKSURL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.KeyTTL)
	assert.Equal(t, "/opt/esmc", cfg.License.Dir)
	assert.True(t, cfg.IsProduction())
}

func TestDevBypassNeverEnabledInProduction(t *testing.T) {
	setBrainChecksums(t)
	t.Setenv("ESMC_ENV", "production")
	t.Setenv("ESMC_AUTH_DEV_SKIP_VERIFY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Auth.DevSkipVerify, "the raw flag is preserved")
	assert.False(t, cfg.DevBypassEnabled(), "production must win over the bypass flag")
}

func TestDevBypassEnabledInDevelopment(t *testing.T) {
	setBrainChecksums(t)
	t.Setenv("ESMC_AUTH_DEV_SKIP_VERIFY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevBypassEnabled())
}

func TestLoadYAMLOverlay(t *testing.T) {
	setBrainChecksums(t)

	path := filepath.Join(t.TempDir(), "esmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"auth:\n  issuer: staging.esmc-sdk.com\nlicense:\n  dir: /srv/licenses\n"), 0o644))
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staging.esmc-sdk.com", cfg.Auth.Issuer)
	assert.Equal(t, "/srv/licenses", cfg.License.Dir)
	// Untouched fields keep their env defaults.
	assert.Equal(t, "esmc-client", cfg.Auth.Audience)
}

func TestBrainChecksums(t *testing.T) {
	setBrainChecksums(t)

	cfg, err := Load()
	require.NoError(t, err)

	sums := cfg.BrainChecksums()
	assert.Equal(t, "sum-pro", sums["PRO"])
	assert.Len(t, sums, 4)
}

func TestLicensePathExplicitDir(t *testing.T) {
	cfg := &Config{}
	cfg.License.Dir = "/opt/esmc"
	assert.Equal(t, filepath.Join("/opt/esmc", "license.json"), LicensePath(cfg))
}
