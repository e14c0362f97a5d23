package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete SDK configuration, loaded from ESMC_* environment
// variables with an optional YAML overlay.
type Config struct {
	// Env is the deployment environment marker. "production" disables the
	// dev verification bypass no matter what the flag says.
	Env string `yaml:"env" envconfig:"ENV" default:"development"`

	Auth    AuthConfig    `yaml:"auth" envconfig:"AUTH"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Brain   BrainConfig   `yaml:"brain" envconfig:"BRAIN"`
}

// AuthConfig configures the JWT verifier and the backend validator.
type AuthConfig struct {
	JWKSURL     string        `yaml:"jwks_url" envconfig:"JWKS_URL" default:"https://esmc-sdk.com/.well-known/jwks.json"`
	Issuer      string        `yaml:"issuer" envconfig:"ISSUER" default:"esmc-sdk.com"`
	Audience    string        `yaml:"audience" envconfig:"AUDIENCE" default:"esmc-client"`
	ValidateURL string        `yaml:"validate_url" envconfig:"VALIDATE_URL" default:"https://esmc-sdk.com/api/auth/validate"`
	KeyTTL      time.Duration `yaml:"key_ttl" envconfig:"KEY_TTL" default:"1h"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" default:"5s"`

	// DevSkipVerify requests the signature-less decode path. Only honored
	// outside production; see Config.DevBypassEnabled.
	DevSkipVerify bool `yaml:"dev_skip_verify" envconfig:"DEV_SKIP_VERIFY" default:"false"`
}

// LicenseConfig configures the license file manager.
type LicenseConfig struct {
	ChecksumURL string `yaml:"checksum_url" envconfig:"CHECKSUM_URL" default:"https://esmc-sdk.com/api/license/validate-checksum"`
	// Dir overrides license directory discovery. Empty means resolve from
	// the working directory.
	Dir string `yaml:"dir" envconfig:"DIR"`
}

// LoggingConfig configures slog handler selection.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"text"`
}

// BrainConfig carries the tier-specific brain file checksum constants.
// These are required: no feature should run without them, so loading fails
// fast when any is absent.
type BrainConfig struct {
	ChecksumFree string `yaml:"checksum_free" envconfig:"CHECKSUM_FREE" required:"true"`
	ChecksumPro  string `yaml:"checksum_pro" envconfig:"CHECKSUM_PRO" required:"true"`
	ChecksumMax  string `yaml:"checksum_max" envconfig:"CHECKSUM_MAX" required:"true"`
	ChecksumVIP  string `yaml:"checksum_vip" envconfig:"CHECKSUM_VIP" required:"true"`
}

// envPrefix namespaces every environment variable.
const envPrefix = "ESMC"

// ConfigFileEnv optionally points at a YAML file overlaid on top of the
// environment-derived configuration.
const ConfigFileEnv = "ESMC_CONFIG_FILE"

// Load builds the configuration from the environment, applies the optional
// YAML overlay, and validates. Missing brain checksum constants are a
// startup-fatal error.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth JWKS URL cannot be empty")
	}
	if c.Auth.KeyTTL <= 0 {
		return fmt.Errorf("auth key TTL must be positive")
	}
	if c.Auth.HTTPTimeout <= 0 {
		return fmt.Errorf("auth HTTP timeout must be positive")
	}
	for name, sum := range c.BrainChecksums() {
		if sum == "" {
			return fmt.Errorf("brain checksum for %s is required", name)
		}
	}
	return nil
}

// IsProduction reports whether the production environment marker is set.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DevBypassEnabled resolves the dev verification bypass once. It can never
// be true in production.
func (c *Config) DevBypassEnabled() bool {
	return c.Auth.DevSkipVerify && !c.IsProduction()
}

// BrainChecksums returns the expected brain file checksums keyed by tier
// name.
func (c *Config) BrainChecksums() map[string]string {
	return map[string]string{
		"FREE": c.Brain.ChecksumFree,
		"PRO":  c.Brain.ChecksumPro,
		"MAX":  c.Brain.ChecksumMax,
		"VIP":  c.Brain.ChecksumVIP,
	}
}
