package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv fills cfg from environ, a NAME=value view of the process
// environment (see [env.ToMap]). Only variables named by the `env` tags of
// [StructuredConfig] are read; everything else in environ is ignored.
func parseEnv(cfg *StructuredConfig, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("read fishlog settings from environment: %w", err)
	}
	return nil
}
