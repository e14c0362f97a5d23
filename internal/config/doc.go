// Package config is the single source of truth for ESMC SDK configuration
// and file paths. Configuration comes from ESMC_* environment variables
// (kelseyhightower/envconfig) with an optional YAML overlay; the brain
// checksum constants are required and make Load fail fast when absent.
//
// Feature-flag style decisions (production marker, dev verification
// bypass) are resolved here once and handed to components as plain values,
// never re-read from the environment in hot paths.
package config
