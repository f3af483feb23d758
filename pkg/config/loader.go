package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, TAPCANVAS_CONFIG env, ./config.yaml, /etc/tapcanvas/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TAPCANVAS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/tapcanvas/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("TAPCANVAS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/tapcanvas/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps TAPCANVAS_* environment variables to config fields.
// Malformed numeric values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	var errs []string
	if v := os.Getenv("TAPCANVAS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "TAPCANVAS_PORT: "+err.Error())
		} else {
			cfg.Server.Port = port
		}
	}

	str("TAPCANVAS_STORAGE", &cfg.Storage.Type)
	str("TAPCANVAS_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	if v := os.Getenv("TAPCANVAS_POSTGRES_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "TAPCANVAS_POSTGRES_MIGRATE: "+err.Error())
		} else {
			cfg.Storage.Postgres.MigrateOnStart = b
		}
	}

	str("TAPCANVAS_OBJECTSTORE", &cfg.ObjectStore.Type)
	str("TAPCANVAS_MINIO_ENDPOINT", &cfg.ObjectStore.Endpoint)
	str("TAPCANVAS_MINIO_ACCESS_KEY", &cfg.ObjectStore.AccessKey)
	str("TAPCANVAS_MINIO_SECRET_KEY", &cfg.ObjectStore.SecretKey)
	str("TAPCANVAS_MINIO_BUCKET", &cfg.ObjectStore.Bucket)
	str("TAPCANVAS_PUBLIC_BASE_URL", &cfg.ObjectStore.PublicBaseURL)

	list("TAPCANVAS_VENDORS", &cfg.Vendors.Enabled)
	list("TAPCANVAS_STORE_ONLY_VENDORS", &cfg.Vendors.StoreOnly)

	str("TAPCANVAS_AUTH_TYPE", &cfg.Auth.Type)
	str("TAPCANVAS_JWT_SECRET", &cfg.Auth.JWT.Secret)

	// TAPCANVAS_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("TAPCANVAS_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, "TAPCANVAS_API_KEYS: "+err.Error())
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	str("TAPCANVAS_TRACING_EXPORTER", &cfg.Observability.Tracing.Exporter)
	str("TAPCANVAS_OTLP_ENDPOINT", &cfg.Observability.Tracing.Endpoint)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"objectstore.access_key_file", cfg.ObjectStore.AccessKeyFile, &cfg.ObjectStore.AccessKey},
		{"objectstore.secret_key_file", cfg.ObjectStore.SecretKeyFile, &cfg.ObjectStore.SecretKey},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for _, r := range refs {
		if r.file == "" || *r.value != "" {
			continue
		}
		val, err := readSecretFile(r.file)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		*r.value = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
