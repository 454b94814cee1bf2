// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// fishlog daemon. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env      : direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings: the key derivation pepper,
	// sign-in token parameters and the application version.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the Local Store, the Remote Store and
	// the photo blob store.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds network address, timeout and rate limit settings for the
	// HTTP API.
	Server Server `envPrefix:"SERVER_"`

	// Adapter holds settings of outbound integrations (connectivity probe).
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Workers holds intervals and limits of background jobs.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Pepper is the build-time secret mixed into every per-user key
	// derivation ("email|pepper"). Changing it makes existing ciphertext
	// unreadable.
	// Env: APP_PEPPER
	Pepper string `env:"PEPPER"`

	// KDF selects the key derivation function: "pbkdf2" (default) or the
	// "sha256" fallback.
	// Env: APP_KDF
	KDF string `env:"KDF"`

	// TokenSignKey is the secret used to verify sign-in tokens presented by
	// the UI.
	// Env: APP_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenIssuer is the expected "iss" claim of sign-in tokens.
	// Env: APP_TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER"`

	// IndexHelpURL is the remediation link attached to missing-index events
	// when the remote error does not carry one.
	// Env: APP_INDEX_HELP_URL
	IndexHelpURL string `env:"INDEX_HELP_URL"`

	// Version is the semantic version string of the running application.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage groups the configuration for all storage backends.
type Storage struct {
	// Local is the embedded Local Store.
	Local Local `envPrefix:"LOCAL_"`

	// Remote is the hosted document store.
	Remote Remote `envPrefix:"REMOTE_"`

	// Blob is the photo object store.
	Blob Blob `envPrefix:"BLOB_"`
}

// Local holds Local Store settings.
type Local struct {
	// DSN is the SQLite file path, or "memory" for a volatile store.
	// Env: STORAGE_LOCAL_DSN
	DSN string `env:"DSN"`

	// LogFile is the rotated client log file; empty logs to stdout.
	// Env: STORAGE_LOCAL_LOG_FILE
	LogFile string `env:"LOG_FILE"`
}

// Remote holds Remote Store settings.
type Remote struct {
	// DSN is the PostgreSQL connection string of the document store, or
	// "memory" for an in-process store.
	// Env: STORAGE_REMOTE_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Blob holds S3-compatible object storage settings. An empty Bucket selects
// the in-memory blob store.
type Blob struct {
	Bucket     string        `env:"BUCKET"`
	Region     string        `env:"REGION"`
	Endpoint   string        `env:"ENDPOINT"`
	AccessKey  string        `env:"ACCESS_KEY"`
	SecretKey  string        `env:"SECRET_KEY"`
	PresignTTL time.Duration `env:"PRESIGN_TTL"`
}

// Server holds network and timeout settings for the inbound HTTP API.
type Server struct {
	// HTTPAddress is the TCP address on which the HTTP server listens,
	// in "host:port" format (e.g. "127.0.0.1:8080").
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// RateLimit is the sustained number of requests per second allowed per
	// client address; zero disables limiting.
	// Env: SERVER_RATE_LIMIT
	RateLimit float64 `env:"RATE_LIMIT"`

	// RateBurst is the burst size of the per-client limiter.
	// Env: SERVER_RATE_BURST
	RateBurst int `env:"RATE_BURST"`
}

// Adapter holds settings of outbound integrations.
type Adapter struct {
	// ProbeURL is requested periodically to decide whether the process is
	// online.
	// Env: ADAPTER_PROBE_URL
	ProbeURL string `env:"PROBE_URL"`

	// RequestTimeout bounds a single probe request.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Workers holds configuration for background jobs.
type Workers struct {
	// ProbeInterval is how often connectivity is probed.
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`

	// SyncInterval is how often the safety sync drains the queue and
	// nudges the encryption migration.
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// MergeChunkSize is the number of local records uploaded between
	// cancellation checks during a guest to account merge.
	MergeChunkSize int `env:"MERGE_CHUNK_SIZE"`

	// OrphanCeiling is the largest number of remote orphans the merge is
	// allowed to delete in one pass.
	OrphanCeiling int `env:"ORPHAN_CEILING"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
