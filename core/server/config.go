package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API. Empty disables auth.
	ApiKey string `mapstructure:"api_key" default:""`
	// ReadTimeoutSeconds bounds reading a request. Syncs of large libraries run longer
	// than this, so it does not apply to handler execution.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" default:"30"`
	// MetricsEnabled exposes the Prometheus endpoint at /metrics.
	MetricsEnabled bool `mapstructure:"metrics_enabled" default:"true"`
}

// IsSecured reports whether requests must carry the API key.
func (c Config) IsSecured() bool {
	return c.ApiKey != ""
}

// ReadTimeout returns the read timeout, 30s when unset.
func (c Config) ReadTimeout() time.Duration {
	if c.ReadTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}
