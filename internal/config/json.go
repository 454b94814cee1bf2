package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] in the snake_case layout of
// the JSON configuration file.
type StructuredJSONConfig struct {
	App struct {
		Pepper       string `json:"pepper"`
		KDF          string `json:"kdf"`
		TokenSignKey string `json:"token_sign_key"`
		TokenIssuer  string `json:"token_issuer"`
		IndexHelpURL string `json:"index_help_url"`
		Version      string `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		Local struct {
			DSN     string `json:"dsn"`
			LogFile string `json:"log_file"`
		} `json:"local,omitempty"`

		Remote struct {
			DSN string `json:"dsn"`
		} `json:"remote,omitempty"`

		Blob struct {
			Bucket     string   `json:"bucket"`
			Region     string   `json:"region"`
			Endpoint   string   `json:"endpoint"`
			AccessKey  string   `json:"access_key"`
			SecretKey  string   `json:"secret_key"`
			PresignTTL Duration `json:"presign_ttl"`
		} `json:"blob,omitempty"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		RateLimit      float64  `json:"rate_limit"`
		RateBurst      int      `json:"rate_burst"`
	} `json:"server,omitempty"`

	Adapter struct {
		ProbeURL       string   `json:"probe_url"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`

	Workers struct {
		ProbeInterval  Duration `json:"probe_interval"`
		SyncInterval   Duration `json:"sync_interval"`
		MergeChunkSize int      `json:"merge_chunk_size"`
		OrphanCeiling  int      `json:"orphan_ceiling"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Pepper:       jsonCfg.App.Pepper,
			KDF:          jsonCfg.App.KDF,
			TokenSignKey: jsonCfg.App.TokenSignKey,
			TokenIssuer:  jsonCfg.App.TokenIssuer,
			IndexHelpURL: jsonCfg.App.IndexHelpURL,
			Version:      jsonCfg.App.Version,
		},
		Storage: Storage{
			Local: Local{
				DSN:     jsonCfg.Storage.Local.DSN,
				LogFile: jsonCfg.Storage.Local.LogFile,
			},
			Remote: Remote{DSN: jsonCfg.Storage.Remote.DSN},
			Blob: Blob{
				Bucket:     jsonCfg.Storage.Blob.Bucket,
				Region:     jsonCfg.Storage.Blob.Region,
				Endpoint:   jsonCfg.Storage.Blob.Endpoint,
				AccessKey:  jsonCfg.Storage.Blob.AccessKey,
				SecretKey:  jsonCfg.Storage.Blob.SecretKey,
				PresignTTL: time.Duration(jsonCfg.Storage.Blob.PresignTTL),
			},
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
			RateLimit:      jsonCfg.Server.RateLimit,
			RateBurst:      jsonCfg.Server.RateBurst,
		},
		Adapter: Adapter{
			ProbeURL:       jsonCfg.Adapter.ProbeURL,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		Workers: Workers{
			ProbeInterval:  time.Duration(jsonCfg.Workers.ProbeInterval),
			SyncInterval:   time.Duration(jsonCfg.Workers.SyncInterval),
			MergeChunkSize: jsonCfg.Workers.MergeChunkSize,
			OrphanCeiling:  jsonCfg.Workers.OrphanCeiling,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
