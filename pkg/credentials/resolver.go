// Package credentials turns a (user, vendor) pair into the base URL and API
// key an adapter call uses. Resolution is a fixed cascade, first match wins:
//
//  1. an enabled proxy config of the user for the vendor
//  2. the user's own enabled token on their own provider
//  3. a shared token on that same provider
//  4. any shared token for the vendor (the shared pool)
//
// Shared tokens that are cooling down are skipped. The base URL is resolved
// independently: own provider, then the vendor-wide shared base URL row,
// then the provider of the selected shared token.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/storage"
)

// KeyPolicy reports whether a vendor needs an API key.
type KeyPolicy func(vendor string) bool

// CooldownPolicy controls shared token cooldown.
type CooldownPolicy struct {
	// FailureThreshold failures disable a shared token.
	FailureThreshold int

	// Cooldown is how long a disabled token stays out of the pool.
	Cooldown time.Duration

	// Timeout bounds each fire-and-forget bookkeeping write.
	Timeout time.Duration
}

// DefaultCooldownPolicy disables a token for 10 minutes after 3 failures.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{FailureThreshold: 3, Cooldown: 10 * time.Minute, Timeout: 5 * time.Second}
}

// Resolver implements the credential cascade.
type Resolver struct {
	store       Store
	cooldown    CooldownStore
	requiresKey KeyPolicy
	policy      CooldownPolicy
	now         func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCooldownStore enables shared token failure bookkeeping.
func WithCooldownStore(cs CooldownStore, policy CooldownPolicy) Option {
	return func(r *Resolver) {
		r.cooldown = cs
		d := DefaultCooldownPolicy()
		if policy.FailureThreshold <= 0 {
			policy.FailureThreshold = d.FailureThreshold
		}
		if policy.Cooldown <= 0 {
			policy.Cooldown = d.Cooldown
		}
		if policy.Timeout <= 0 {
			policy.Timeout = d.Timeout
		}
		r.policy = policy
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver. requiresKey is usually Registry.RequiresKey.
func NewResolver(store Store, requiresKey KeyPolicy, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		requiresKey: requiresKey,
		policy:      DefaultCooldownPolicy(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the provider context for one call. It is read-only and
// never retries.
func (r *Resolver) Resolve(ctx context.Context, userID, vendor, modelKey string) (*provider.Context, error) {
	pc, err := r.resolve(ctx, userID, vendor)
	if err != nil {
		debug.Log(debug.Credentials, "resolution failed", "user", userID, "vendor", vendor, "error", err)
		return nil, err
	}
	pc.UserID = userID
	pc.ModelKey = modelKey
	observability.CredentialResolutions.WithLabelValues(vendor, pc.Source).Inc()
	debug.Log(debug.Credentials, "resolved",
		"user", userID,
		"vendor", vendor,
		"source", pc.Source,
		"token", pc.TokenID,
		"base_url", pc.BaseURL,
		"key", debug.MaskSecret(pc.APIKey),
	)
	return pc, nil
}

func (r *Resolver) resolve(ctx context.Context, userID, vendor string) (*provider.Context, error) {
	if pc, err := r.fromProxy(ctx, userID, vendor); pc != nil || err != nil {
		return pc, err
	}

	providers, err := r.store.OwnProviders(ctx, userID, vendor)
	if err != nil {
		return nil, storeError("providers", err)
	}
	var own *Provider
	if len(providers) > 0 {
		own = &providers[0]
	}

	pc := &provider.Context{}
	var tokenProvider string

	if own != nil {
		tokens, err := r.store.UserTokens(ctx, own.ID, userID)
		if err != nil {
			return nil, storeError("tokens", err)
		}
		if t := firstUsable(tokens, false, r.now()); t != nil {
			pc.APIKey, pc.TokenID, pc.Source = t.SecretToken, t.ID, provider.SourceOwnToken
		}
	}

	needKey := r.requiresKey == nil || r.requiresKey(vendor)
	if pc.APIKey == "" && needKey {
		t, err := r.sharedToken(ctx, vendor, own)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, api.NewCredentialMissingError(vendor,
				fmt.Sprintf("no API key available for %s: add a token or a proxy config", vendor))
		}
		pc.APIKey, pc.TokenID = t.SecretToken, t.ID
		pc.SharedToken, pc.TokenFailures = true, t.SharedFailureCount
		pc.Source = provider.SourceSharedPool
		if own != nil && t.ProviderID == own.ID {
			pc.Source = provider.SourceProviderShared
		} else {
			tokenProvider = t.ProviderID
		}
	}
	if pc.Source == "" {
		pc.Source = provider.SourceKeyless
	}

	pc.BaseURL, err = r.baseURL(ctx, vendor, own, tokenProvider)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// fromProxy returns the context of the user's enabled proxy for vendor. A
// direct vendor match wins over an EnabledVendors match.
func (r *Resolver) fromProxy(ctx context.Context, userID, vendor string) (*provider.Context, error) {
	configs, err := r.store.ProxyConfigs(ctx, userID)
	if err != nil {
		return nil, storeError("proxy configs", err)
	}
	var chosen *ProxyConfig
	for i := range configs {
		c := &configs[i]
		if !c.Enabled {
			continue
		}
		match, direct := c.Matches(vendor)
		if !match {
			continue
		}
		if direct {
			chosen = c
			break
		}
		if chosen == nil {
			chosen = c
		}
	}
	if chosen == nil {
		return nil, nil
	}
	if chosen.BaseURL == "" {
		return nil, api.NewProxyMisconfiguredError(vendor, "baseUrl")
	}
	if chosen.APIKey == "" {
		return nil, api.NewProxyMisconfiguredError(vendor, "apiKey")
	}
	return &provider.Context{
		BaseURL: chosen.BaseURL,
		APIKey:  chosen.APIKey,
		Source:  provider.SourceProxy,
	}, nil
}

// sharedToken picks the own provider's shared token, then the vendor pool.
func (r *Resolver) sharedToken(ctx context.Context, vendor string, own *Provider) (*Token, error) {
	now := r.now()
	if own != nil {
		tokens, err := r.store.SharedTokens(ctx, vendor, own.ID)
		if err != nil {
			return nil, storeError("shared tokens", err)
		}
		if t := firstUsable(tokens, true, now); t != nil {
			return t, nil
		}
	}
	tokens, err := r.store.SharedTokens(ctx, vendor, "")
	if err != nil {
		return nil, storeError("shared tokens", err)
	}
	return firstUsable(tokens, true, now), nil
}

func (r *Resolver) baseURL(ctx context.Context, vendor string, own *Provider, tokenProvider string) (string, error) {
	if own != nil && own.BaseURL != "" {
		return own.BaseURL, nil
	}
	p, err := r.store.SharedBaseURLProvider(ctx, vendor)
	switch {
	case err == nil && p.BaseURL != "":
		return p.BaseURL, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", storeError("shared base url", err)
	}
	if tokenProvider != "" {
		p, err := r.store.Provider(ctx, tokenProvider)
		if err == nil {
			return p.BaseURL, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", storeError("provider", err)
		}
	}
	return "", nil
}

// firstUsable returns the first enabled token, skipping shared tokens that
// are cooling down. Input order is the tie-break.
func firstUsable(tokens []Token, shared bool, now time.Time) *Token {
	for i := range tokens {
		t := &tokens[i]
		if !t.Enabled || t.SecretToken == "" || t.Shared != shared {
			continue
		}
		if shared && t.CoolingDown(now) {
			continue
		}
		return t
	}
	return nil
}

// Profile resolves a model profile of userID to its vendor and model key.
func (r *Resolver) Profile(ctx context.Context, userID, profileID string) (vendor, modelKey string, err error) {
	prof, err := r.store.Profile(ctx, userID, profileID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", api.NewNotFoundError(fmt.Sprintf("model profile %q not found", profileID))
	}
	if err != nil {
		return "", "", storeError("profile", err)
	}
	p, err := r.store.Provider(ctx, prof.ProviderID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", api.NewNotFoundError(fmt.Sprintf("provider of profile %q not found", profileID))
	}
	if err != nil {
		return "", "", storeError("provider", err)
	}
	return p.Vendor, prof.ModelKey, nil
}

// RecordOutcome does the shared token bookkeeping after a vendor call. An
// auth or quota failure (401, 403, 429) counts against the token; a success
// clears an earlier count. It runs detached from ctx's cancellation and
// never reports errors to the caller.
func (r *Resolver) RecordOutcome(ctx context.Context, pc *provider.Context, callErr error) {
	if r.cooldown == nil || pc == nil || !pc.SharedToken || pc.TokenID == "" {
		return
	}
	var (
		op  string
		run func(context.Context) error
	)
	switch {
	case callErr == nil && pc.TokenFailures > 0:
		op = "reset"
		run = func(ctx context.Context) error { return r.cooldown.ResetSharedFailures(ctx, pc.TokenID) }
	case countsAgainstToken(callErr):
		op = "failure"
		until := r.now().Add(r.policy.Cooldown)
		run = func(ctx context.Context) error {
			return r.cooldown.RecordSharedFailure(ctx, pc.TokenID, r.policy.FailureThreshold, until)
		}
		observability.SharedTokenFailures.WithLabelValues(vendorOf(callErr)).Inc()
	default:
		return
	}

	tokenID := pc.TokenID
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.policy.Timeout)
	go func() {
		defer cancel()
		if err := run(bg); err != nil {
			slog.Warn("shared token bookkeeping failed", "op", op, "token", tokenID, "error", err)
		}
	}()
}

func countsAgainstToken(err error) bool {
	apiErr, ok := api.AsAPIError(err)
	if !ok || apiErr.Code != api.CodeUpstreamError {
		return false
	}
	switch apiErr.Status {
	case 401, 403, 429:
		return true
	}
	return false
}

func vendorOf(err error) string {
	if apiErr, ok := api.AsAPIError(err); ok {
		return apiErr.Vendor
	}
	return ""
}

func storeError(what string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return api.NewServerError(fmt.Sprintf("credential store: %s: %v", what, err))
}
