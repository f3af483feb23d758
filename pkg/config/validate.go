package config

import (
	"errors"
	"fmt"
	"strings"
)

// KnownVendors lists the adapters the server can register.
var KnownVendors = []string{"openai", "gemini", "qwen", "veo", "sora2api", "local"}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	switch c.ObjectStore.Type {
	case "none", "":
	case "minio":
		if c.ObjectStore.Endpoint == "" {
			errs = append(errs, fmt.Errorf("objectstore.endpoint is required when objectstore.type is \"minio\""))
		}
		if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
			errs = append(errs, fmt.Errorf("objectstore.access_key and objectstore.secret_key are required when objectstore.type is \"minio\""))
		}
	default:
		errs = append(errs, fmt.Errorf("objectstore.type must be \"none\" or \"minio\", got %q", c.ObjectStore.Type))
	}

	for _, v := range c.Vendors.Enabled {
		if !isKnownVendor(v) {
			errs = append(errs, fmt.Errorf("vendors.enabled: unknown vendor %q", v))
		}
	}
	for v := range c.Vendors.BaseURLs {
		if !isKnownVendor(v) {
			errs = append(errs, fmt.Errorf("vendors.base_urls: unknown vendor %q", v))
		}
	}
	if c.Vendors.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("vendors.rate_per_second must not be negative"))
	}
	if c.Vendors.Cooldown.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("vendors.cooldown.failure_threshold must be >= 1, got %d", c.Vendors.Cooldown.FailureThreshold))
	}

	if c.Poller.MaxAttempts < 1 || c.Poller.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poller.interval and poller.max_attempts must be positive"))
	}
	if c.Poller.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("poller.max_wait must not be negative"))
	}

	switch c.Auth.Type {
	case "none", "apikey":
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}

	switch strings.ToLower(c.Observability.Tracing.Exporter) {
	case "", "none", "stdout", "otlphttp":
	default:
		errs = append(errs, fmt.Errorf("observability.tracing.exporter must be \"none\", \"stdout\" or \"otlphttp\", got %q", c.Observability.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

func isKnownVendor(v string) bool {
	for _, k := range KnownVendors {
		if strings.EqualFold(k, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
