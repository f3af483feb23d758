package credentials

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Provider binds an owner to a vendor endpoint.
type Provider struct {
	ID      string
	OwnerID string
	Name    string
	Vendor  string
	BaseURL string

	// SharedBaseURL marks the vendor-wide base URL used by users that have
	// no provider of their own.
	SharedBaseURL bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Token is an API key on a provider. A private token serves only UserID; a
// shared one serves anyone while enabled and not cooling down.
type Token struct {
	ID                  string
	ProviderID          string
	UserID              string
	SecretToken         string
	Enabled             bool
	Shared              bool
	SharedFailureCount  int
	SharedDisabledUntil *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CoolingDown reports whether the token is excluded from selection at now.
func (t *Token) CoolingDown(now time.Time) bool {
	return t.SharedDisabledUntil != nil && t.SharedDisabledUntil.After(now)
}

// ProxyConfig is a per-user override that replaces the provider and token
// cascade for Vendor and every vendor in EnabledVendors.
type ProxyConfig struct {
	ID             string
	OwnerID        string
	Vendor         string
	EnabledVendors []string
	BaseURL        string
	APIKey         string
	Enabled        bool
	UpdatedAt      time.Time
}

// Matches reports whether the config applies to vendor, and whether the
// match is direct rather than through EnabledVendors.
func (p *ProxyConfig) Matches(vendor string) (match, direct bool) {
	if strings.EqualFold(p.Vendor, vendor) {
		return true, true
	}
	return slices.ContainsFunc(p.EnabledVendors, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), vendor)
	}), false
}

// ModelProfile is a saved (provider, model) choice referenced by profileId.
type ModelProfile struct {
	ID         string
	OwnerID    string
	ProviderID string
	Name       string
	Kind       api.TaskKind
	ModelKey   string
	CreatedAt  time.Time
}

// Store is the read surface of the credential tables. Lists are returned in
// the order the cascade needs: providers and private tokens by creation
// time, shared tokens by last update. Missing single rows return
// storage.ErrNotFound.
type Store interface {
	ProxyConfigs(ctx context.Context, userID string) ([]ProxyConfig, error)
	OwnProviders(ctx context.Context, userID, vendor string) ([]Provider, error)
	Provider(ctx context.Context, id string) (*Provider, error)
	SharedBaseURLProvider(ctx context.Context, vendor string) (*Provider, error)

	// UserTokens returns the enabled private tokens of userID on providerID.
	UserTokens(ctx context.Context, providerID, userID string) ([]Token, error)

	// SharedTokens returns enabled shared tokens of vendor. A non-empty
	// providerID narrows the result to that provider.
	SharedTokens(ctx context.Context, vendor, providerID string) ([]Token, error)

	Profile(ctx context.Context, userID, profileID string) (*ModelProfile, error)
}

// CooldownStore records shared token failures. Updates are single-row and
// last-write-wins.
type CooldownStore interface {
	// RecordSharedFailure increments the failure count and, once it reaches
	// threshold, disables the token until the given time.
	RecordSharedFailure(ctx context.Context, tokenID string, threshold int, until time.Time) error

	// ResetSharedFailures clears the count and the cooldown.
	ResetSharedFailures(ctx context.Context, tokenID string) error
}
