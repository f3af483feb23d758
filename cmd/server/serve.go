package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mdsxbm/tapcanvas/pkg/assets"
	"github.com/mdsxbm/tapcanvas/pkg/auth"
	"github.com/mdsxbm/tapcanvas/pkg/config"
	"github.com/mdsxbm/tapcanvas/pkg/credentials"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/engine"
	"github.com/mdsxbm/tapcanvas/pkg/mcpserver"
	"github.com/mdsxbm/tapcanvas/pkg/objectstore"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
	"github.com/mdsxbm/tapcanvas/pkg/progress"
	"github.com/mdsxbm/tapcanvas/pkg/storage/memory"
	"github.com/mdsxbm/tapcanvas/pkg/storage/postgres"
	transporthttp "github.com/mdsxbm/tapcanvas/pkg/transport/http"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task API server",
	RunE:  runServe,
}

// store is the persistence surface the server needs from a backend.
type store interface {
	credentials.Store
	credentials.CooldownStore
	assets.Store
	HealthCheck(ctx context.Context) error
	Close() error
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTracing, err := observability.InitTracing(ctx, tracingConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("building adapter registry: %w", err)
	}

	resolver := credentials.NewResolver(st, registry.RequiresKey,
		credentials.WithCooldownStore(st, credentials.CooldownPolicy{
			FailureThreshold: cfg.Vendors.Cooldown.FailureThreshold,
			Cooldown:         cfg.Vendors.Cooldown.Duration,
		}),
	)

	bus := progress.NewBus(progress.Config{
		BufferSize:       cfg.Progress.BufferSize,
		StoreOnlyVendors: cfg.Vendors.StoreOnly,
		PendingLimit:     cfg.Progress.PendingLimit,
		PendingTTL:       cfg.Progress.PendingTTL,
	})

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithKeepAlive(cfg.Server.KeepAlive),
		transporthttp.WithLogger(slog.Default()),
		transporthttp.WithHealthCheck("storage", st),
	}

	var uploader assets.Uploader
	if cfg.ObjectStore.Type == "minio" {
		up, err := objectstore.New(ctx, objectstoreConfig(cfg))
		if err != nil {
			return fmt.Errorf("connecting to object store: %w", err)
		}
		uploader = up
		opts = append(opts, transporthttp.WithHealthCheck("objectstore", up))
		slog.Info("asset rehosting enabled", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)
	} else {
		slog.Info("asset rehosting disabled, vendor URLs are kept")
	}
	rehoster := assets.NewRehoster(uploader, st, assets.WithMaxBytes(cfg.ObjectStore.MaxBytes))

	eng, err := engine.New(registry, resolver, bus, rehoster, engine.Config{})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	chain, err := buildAuthChain(cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	bypass := append([]string(nil), auth.DefaultBypassEndpoints...)
	if cfg.Observability.Metrics.Path != "" && cfg.Observability.Metrics.Path != "/metrics" {
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}
	opts = append(opts, transporthttp.WithHTTPMiddleware(auth.Middleware(chain, buildLimiter(cfg), bypass)))

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts,
			transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware),
			transporthttp.WithHandler("GET "+cfg.Observability.Metrics.Path, promhttp.Handler()),
		)
	}
	if cfg.MCP.Enabled {
		opts = append(opts, transporthttp.WithHandler(cfg.MCP.Path, mcpserver.New(eng, bus, version).Handler()))
	}

	slog.Info("tapcanvas starting",
		"version", version,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"vendors", registry.Vendors(),
		"auth", cfg.Auth.Type,
	)

	return transporthttp.NewServer(eng, bus, opts...).ListenAndServe()
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		s, err := postgres.New(ctx, postgresConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "migrate_on_start", cfg.Storage.Postgres.MigrateOnStart)
		return s, nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_assets", cfg.Storage.MaxAssets)
		return memory.New(cfg.Storage.MaxAssets), nil
	}
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		DSN:            cfg.Storage.Postgres.DSN,
		MaxConns:       cfg.Storage.Postgres.MaxConns,
		MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
	}
}

func objectstoreConfig(cfg *config.Config) objectstore.Config {
	o := cfg.ObjectStore
	return objectstore.Config{
		Endpoint:      o.Endpoint,
		AccessKey:     o.AccessKey,
		SecretKey:     o.SecretKey,
		Bucket:        o.Bucket,
		Region:        o.Region,
		UseSSL:        o.UseSSL,
		PublicBaseURL: o.PublicBaseURL,
	}
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	t := cfg.Observability.Tracing
	return observability.TracingConfig{
		Exporter:    t.Exporter,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		Headers:     t.Headers,
		SampleRatio: t.SampleRatio,
		ServiceName: "tapcanvas",
		Environment: t.Environment,
	}
}
