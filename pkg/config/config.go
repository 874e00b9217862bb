// Package config holds environment-variable-backed defaults for every
// binary in this module, following the teacher's GetEnvOrDefault pattern
// (SPEC_FULL §6).
package config

import (
	"os"
	"strconv"
	"strings"
)

// ShellConfig holds the CLI shell's environment-derived defaults. Command
// line flags always override these (SPEC_FULL §6).
type ShellConfig struct {
	LogLevel        string
	LogFormat       string // "text" or "json"
	DefaultDialect  string // "v2" or "v3"
}

// Load loads the CLI shell's configuration from environment variables.
func Load() *ShellConfig {
	return &ShellConfig{
		LogLevel:       GetEnvOrDefault("NTC_LOG_LEVEL", "info"),
		LogFormat:      GetEnvOrDefault("NTC_LOG_FORMAT", "text"),
		DefaultDialect: GetEnvOrDefault("NTC_DEFAULT_DIALECT", "v3"),
	}
}

// DevDNSConfig holds the dev DNS resolver's environment-derived defaults,
// adapted from the teacher's DnsServerConfig (cmd/dns-server) to resolve
// converted-config hostnames instead of a fixed custom TLD.
type DevDNSConfig struct {
	TargetIP string
	Port     string
}

// LoadDevDNS loads the dev DNS resolver's configuration from environment
// variables.
func LoadDevDNS() *DevDNSConfig {
	return &DevDNSConfig{
		TargetIP: GetEnvOrDefault("NTC_DEVDNS_TARGET_IP", "127.0.0.1"),
		Port:     GetEnvOrDefault("NTC_DEVDNS_PORT", "19322"),
	}
}

// GetEnvOrDefault returns the environment variable value or a default if
// not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvOrDefaultInt returns an environment variable as an integer or a
// default.
func GetEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// NormalizeDialect lowercases and validates a dialect string, falling
// back to "v3" for anything unrecognized.
func NormalizeDialect(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "v2" {
		return "v2"
	}
	return "v3"
}
