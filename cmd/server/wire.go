package main

import (
	"fmt"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/auth"
	"github.com/mdsxbm/tapcanvas/pkg/auth/apikey"
	"github.com/mdsxbm/tapcanvas/pkg/auth/jwt"
	"github.com/mdsxbm/tapcanvas/pkg/auth/noop"
	"github.com/mdsxbm/tapcanvas/pkg/config"
	"github.com/mdsxbm/tapcanvas/pkg/poller"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/gemini"
	"github.com/mdsxbm/tapcanvas/pkg/provider/local"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openai"
	"github.com/mdsxbm/tapcanvas/pkg/provider/qwen"
	"github.com/mdsxbm/tapcanvas/pkg/provider/sora2api"
	"github.com/mdsxbm/tapcanvas/pkg/provider/veo"
)

// pollerConfig carries the poller section into the adapters that poll
// server-side.
func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		Interval:    cfg.Poller.Interval,
		MaxAttempts: cfg.Poller.MaxAttempts,
		MaxWait:     cfg.Poller.MaxWait,
	}
}

// buildRegistry registers the enabled adapters with the shared transport
// settings and any per-vendor base URL override.
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	enabled := make(map[string]bool, len(cfg.Vendors.Enabled))
	for _, v := range cfg.Vendors.Enabled {
		enabled[strings.ToLower(strings.TrimSpace(v))] = true
	}
	want := func(name string) bool { return len(enabled) == 0 || enabled[name] }

	settings := func(name string) provider.HTTPSettings {
		return provider.HTTPSettings{
			Timeout:        cfg.Vendors.Timeout,
			LongTimeout:    cfg.Vendors.LongTimeout,
			RatePerSecond:  cfg.Vendors.RatePerSecond,
			Burst:          cfg.Vendors.Burst,
			DefaultBaseURL: cfg.Vendors.BaseURLs[name],
		}
	}

	var adapters []provider.Adapter
	if want("openai") {
		adapters = append(adapters, openai.New(openai.Config{HTTP: settings("openai")}))
	}
	if want("gemini") {
		adapters = append(adapters, gemini.New(gemini.Config{HTTP: settings("gemini")}))
	}
	if want("qwen") {
		adapters = append(adapters, qwen.New(qwen.Config{
			HTTP: settings("qwen"),
			Poll: pollerConfig(cfg),
		}))
	}
	if want("veo") {
		adapters = append(adapters, veo.New(veo.Config{HTTP: settings("veo")}))
	}
	if want("sora2api") {
		adapters = append(adapters, sora2api.New(sora2api.Config{HTTP: settings("sora2api")}))
	}
	if want("local") {
		adapters = append(adapters, local.New(local.Config{HTTP: settings("local")}))
	}
	return provider.NewRegistry(adapters...)
}

// buildAuthChain maps auth.type onto authenticators.
func buildAuthChain(cfg *config.Config) (*auth.AuthChain, error) {
	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier},
			})
		}
		return &auth.AuthChain{Authenticators: []auth.Authenticator{apikey.New(entries)}, DefaultDecision: auth.No}, nil
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:    []byte(cfg.Auth.JWT.Secret),
			Issuer:    cfg.Auth.JWT.Issuer,
			Audience:  cfg.Auth.JWT.Audience,
			UserClaim: cfg.Auth.JWT.UserClaim,
		})
		if err != nil {
			return nil, err
		}
		return &auth.AuthChain{Authenticators: []auth.Authenticator{a}, DefaultDecision: auth.No}, nil
	case "none", "":
		return &auth.AuthChain{Authenticators: []auth.Authenticator{&noop.Authenticator{Subject: cfg.Auth.Subject}}}, nil
	}
	return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
}

// buildLimiter returns nil when inbound rate limiting is off.
func buildLimiter(cfg *config.Config) auth.RateLimiter {
	rl := cfg.Auth.RateLimit
	if rl.RequestsPerMinute <= 0 && len(rl.Tiers) == 0 {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(rl.Tiers))
	for name, rpm := range rl.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return auth.NewInProcessLimiter(tiers, rl.RequestsPerMinute)
}
