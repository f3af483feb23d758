// Package config provides unified configuration for the tapcanvas task server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (TAPCANVAS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the task server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectstore"`
	Vendors       VendorsConfig       `yaml:"vendors"`
	Poller        PollerConfig        `yaml:"poller"`
	Progress      ProgressConfig      `yaml:"progress"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 20 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	KeepAlive       time.Duration `yaml:"keep_alive"`       // SSE ping, default: 15s
}

// StorageConfig selects the credential and asset store.
type StorageConfig struct {
	Type      string         `yaml:"type"`       // "memory" or "postgres", default: "memory"
	MaxAssets int            `yaml:"max_assets"` // memory store only, default: 10000
	Postgres  PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObjectStoreConfig configures where generated media is rehosted.
type ObjectStoreConfig struct {
	Type          string `yaml:"type"` // "none" or "minio", default: "none"
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Bucket        string `yaml:"bucket"` // default: "tapcanvas"
	Region        string `yaml:"region"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
	MaxBytes      int64  `yaml:"max_bytes"` // per asset, default: 512 MiB
}

// VendorsConfig holds adapter transport settings shared by all vendors.
type VendorsConfig struct {
	// Enabled lists the adapters to register. Empty registers all.
	Enabled []string `yaml:"enabled"`

	Timeout       time.Duration `yaml:"timeout"`         // default: 30s
	LongTimeout   time.Duration `yaml:"long_timeout"`    // default: 120s
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables pacing
	Burst         int           `yaml:"burst"`

	// BaseURLs overrides the built-in default base URL per vendor.
	BaseURLs map[string]string `yaml:"base_urls"`

	// StoreOnly vendors keep progress in the pending list instead of
	// pushing it to live subscribers.
	StoreOnly []string `yaml:"store_only"`

	Cooldown CooldownConfig `yaml:"cooldown"`
}

// CooldownConfig controls shared token cooldown.
type CooldownConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // default: 3
	Duration         time.Duration `yaml:"duration"`          // default: 10m
}

// PollerConfig bounds server-side polling of async vendor jobs.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`     // default: 2s
	MaxAttempts int           `yaml:"max_attempts"` // default: 20
	// MaxWait caps one job's total polling time. Zero derives it from
	// interval x max_attempts plus a minute.
	MaxWait time.Duration `yaml:"max_wait"`
}

// ProgressConfig tunes the progress bus.
type ProgressConfig struct {
	BufferSize   int           `yaml:"buffer_size"`   // default: 32
	PendingLimit int           `yaml:"pending_limit"` // default: 50
	PendingTTL   time.Duration `yaml:"pending_ttl"`   // default: 10m
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	Subject string         `yaml:"subject"`  // user id for type=none
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig configures HMAC bearer token validation.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	UserClaim  string `yaml:"user_claim"` // default: "sub"
}

// RateLimitConfig holds per-user request limits.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"` // 0 disables limiting
	Tiers             map[string]int `yaml:"tiers"`               // tier -> requests per minute
}

// MCPConfig holds the MCP tool endpoint settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string            `yaml:"exporter"` // "none", "stdout" or "otlphttp"
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	SampleRatio float64           `yaml:"sample_ratio"` // default: 1
	Environment string            `yaml:"environment"`
}

// LoggingConfig holds log output settings. TAPCANVAS_DEBUG and
// TAPCANVAS_LOG_LEVEL override them at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     20 << 20,
			ShutdownTimeout: 30 * time.Second,
			KeepAlive:       15 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "memory",
			MaxAssets: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		ObjectStore: ObjectStoreConfig{
			Type:     "none",
			Bucket:   "tapcanvas",
			MaxBytes: 512 << 20,
		},
		Vendors: VendorsConfig{
			Timeout:     30 * time.Second,
			LongTimeout: 120 * time.Second,
			Burst:       1,
			Cooldown: CooldownConfig{
				FailureThreshold: 3,
				Duration:         10 * time.Minute,
			},
		},
		Poller: PollerConfig{
			Interval:    2 * time.Second,
			MaxAttempts: 20,
		},
		Progress: ProgressConfig{
			BufferSize:   32,
			PendingLimit: 50,
			PendingTTL:   10 * time.Minute,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				Exporter:    "none",
				SampleRatio: 1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
