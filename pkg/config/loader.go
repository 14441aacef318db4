// Package config parses service configuration from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables. Fields declare their variable
// with an `env` tag; list fields add envSeparator, and map fields, like the
// per-host-type policy overrides, add envKeyValSeparator:
//
//	type Config struct {
//	    HTTPPort  int             `env:"MEDIABLE_HTTP_PORT" envDefault:"8013"`
//	    HostTypes []string        `env:"MEDIABLE_HOST_TYPES" envSeparator:","`
//	    Overrides map[string]bool `env:"MEDIABLE_DETACH_OVERRIDES" envSeparator:"," envKeyValSeparator:":"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse %T from environment: %w", cfg, err)
	}
	return nil
}
