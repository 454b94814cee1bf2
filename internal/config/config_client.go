package config

import (
	"fmt"
	"time"
)

// Defaults applied by [GetClientConfig] to optional settings.
const (
	DefaultHTTPAddress    = "127.0.0.1:8080"
	DefaultLocalDSN       = "fishlog.db"
	DefaultRemoteDSN      = "memory"
	DefaultKDF            = KDFPBKDF2
	DefaultRequestTimeout = 15 * time.Second
	DefaultProbeInterval  = 15 * time.Second
	DefaultSyncInterval   = time.Minute
	DefaultPresignTTL     = 24 * time.Hour
	DefaultMergeChunkSize = 25
	DefaultOrphanCeiling  = 50
	DefaultRateLimit      = 20
	DefaultRateBurst      = 40
	DefaultIndexHelpURL   = "https://www.postgresql.org/docs/current/sql-createindex.html"
)

// Supported key derivation functions.
const (
	KDFPBKDF2 = "pbkdf2"
	KDFSHA256 = "sha256"
)

// ClientApp holds application settings of the sync daemon.
type ClientApp struct {
	Pepper       string
	KDF          string
	TokenSignKey string
	TokenIssuer  string
	IndexHelpURL string
	Version      string
}

// ClientStorage groups storage backend settings.
type ClientStorage struct {
	Local  Local
	Remote Remote
	Blob   Blob
}

// ClientServer holds HTTP API settings.
type ClientServer struct {
	HTTPAddress    string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

// ClientAdapter holds outbound integration settings.
type ClientAdapter struct {
	ProbeURL       string
	RequestTimeout time.Duration
}

// ClientWorkers contains background job settings.
type ClientWorkers struct {
	ProbeInterval  time.Duration
	SyncInterval   time.Duration
	MergeChunkSize int
	OrphanCeiling  int
}

// ClientConfig is the validated configuration view used to assemble the
// daemon from [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Storage ClientStorage
	Server  ClientServer
	Adapter ClientAdapter
	Workers ClientWorkers
}

// GetClientConfig builds and validates the daemon config view from the
// merged structured configuration.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	return NewClientConfig(cfg)
}

// NewClientConfig maps cfg onto a [ClientConfig], fills defaults for optional
// settings and validates the result.
func NewClientConfig(cfg *StructuredConfig) (*ClientConfig, error) {
	clientCfg := &ClientConfig{
		App: ClientApp{
			Pepper:       cfg.App.Pepper,
			KDF:          orDefault(cfg.App.KDF, DefaultKDF),
			TokenSignKey: cfg.App.TokenSignKey,
			TokenIssuer:  cfg.App.TokenIssuer,
			IndexHelpURL: orDefault(cfg.App.IndexHelpURL, DefaultIndexHelpURL),
			Version:      cfg.App.Version,
		},
		Storage: ClientStorage{
			Local: Local{
				DSN:     orDefault(cfg.Storage.Local.DSN, DefaultLocalDSN),
				LogFile: cfg.Storage.Local.LogFile,
			},
			Remote: Remote{DSN: orDefault(cfg.Storage.Remote.DSN, DefaultRemoteDSN)},
			Blob:   cfg.Storage.Blob,
		},
		Server: ClientServer{
			HTTPAddress:    orDefault(cfg.Server.HTTPAddress, DefaultHTTPAddress),
			RequestTimeout: orDefault(cfg.Server.RequestTimeout, DefaultRequestTimeout),
			RateLimit:      orDefault(cfg.Server.RateLimit, DefaultRateLimit),
			RateBurst:      orDefault(cfg.Server.RateBurst, DefaultRateBurst),
		},
		Adapter: ClientAdapter{
			ProbeURL:       cfg.Adapter.ProbeURL,
			RequestTimeout: orDefault(cfg.Adapter.RequestTimeout, DefaultRequestTimeout),
		},
		Workers: ClientWorkers{
			ProbeInterval:  orDefault(cfg.Workers.ProbeInterval, DefaultProbeInterval),
			SyncInterval:   orDefault(cfg.Workers.SyncInterval, DefaultSyncInterval),
			MergeChunkSize: orDefault(cfg.Workers.MergeChunkSize, DefaultMergeChunkSize),
			OrphanCeiling:  orDefault(cfg.Workers.OrphanCeiling, DefaultOrphanCeiling),
		},
	}
	clientCfg.Storage.Blob.PresignTTL = orDefault(cfg.Storage.Blob.PresignTTL, DefaultPresignTTL)

	return clientCfg, clientCfg.validate()
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
