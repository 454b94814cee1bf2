// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"
)

// validate checks format-level invariants of the merged [StructuredConfig].
// Required settings are enforced on the [ClientConfig] view, so an empty
// config is valid here.
func (cfg *StructuredConfig) validate() error {
	if cfg.App.KDF != "" && cfg.App.KDF != KDFPBKDF2 && cfg.App.KDF != KDFSHA256 {
		return fmt.Errorf("%w: unknown kdf %q", ErrInvalidAppConfigs, cfg.App.KDF)
	}
	if cfg.Server.RateLimit < 0 || cfg.Server.RateBurst < 0 {
		return fmt.Errorf("%w: negative rate limit", ErrInvalidServerConfigs)
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.App.Pepper == "" {
		return fmt.Errorf("%w: pepper is required", ErrInvalidAppConfigs)
	}
	if cfg.App.TokenSignKey == "" || cfg.App.TokenIssuer == "" {
		return fmt.Errorf("%w: token sign key and issuer are required", ErrInvalidAppConfigs)
	}

	if cfg.Storage.Local.DSN == "" || cfg.Storage.Remote.DSN == "" {
		return ErrInvalidStorageConfigs
	}
	if cfg.Storage.Blob.Bucket != "" && cfg.Storage.Blob.Region == "" {
		return fmt.Errorf("%w: blob region is required with a bucket", ErrInvalidStorageConfigs)
	}

	if cfg.Adapter.ProbeURL != "" {
		if _, err := url.ParseRequestURI(cfg.Adapter.ProbeURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAdapterConfigs, err)
		}
	}

	if cfg.Workers.ProbeInterval <= 0 || cfg.Workers.SyncInterval <= 0 ||
		cfg.Workers.MergeChunkSize <= 0 || cfg.Workers.OrphanCeiling < 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
