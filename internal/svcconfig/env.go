// Package svcconfig provides environment-variable configuration loading for
// the decs services, following the same EnvConfig pattern used across the
// rest of the ambient stack.
package svcconfig

import (
	"os"
	"strconv"
	"time"
)

// EnvConfig loads typed values from environment variables with an optional
// prefix applied to every key.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment loader scoped to prefix (may be empty).
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) key(name string) string {
	if ec.prefix == "" {
		return name
	}
	return ec.prefix + "_" + name
}

// GetString returns the named variable or defaultValue if unset.
func (ec *EnvConfig) GetString(name, defaultValue string) string {
	if v := os.Getenv(ec.key(name)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt parses the named variable as an int, or returns defaultValue.
func (ec *EnvConfig) GetInt(name string, defaultValue int) int {
	if v := os.Getenv(ec.key(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetDuration parses the named variable with time.ParseDuration, or returns
// defaultValue.
func (ec *EnvConfig) GetDuration(name string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.key(name)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
