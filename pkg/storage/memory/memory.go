// Package memory provides an in-memory credential and asset store for tests
// and single-process deployments. Everything is lost when the process
// restarts. Rows are seeded with the Put methods.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdsxbm/tapcanvas/pkg/assets"
	"github.com/mdsxbm/tapcanvas/pkg/credentials"
	"github.com/mdsxbm/tapcanvas/pkg/storage"
)

// Store holds credential rows and asset records.
type Store struct {
	mu        sync.RWMutex
	providers map[string]credentials.Provider
	tokens    map[string]credentials.Token
	proxies   map[string]credentials.ProxyConfig
	profiles  map[string]credentials.ModelProfile
	assets    []assets.Record
	maxAssets int
	now       func() time.Time
}

// Compile-time interface checks.
var (
	_ credentials.Store         = (*Store)(nil)
	_ credentials.CooldownStore = (*Store)(nil)
	_ assets.Store              = (*Store)(nil)
)

// New creates an empty store. maxAssets bounds the asset records kept,
// evicting the oldest; 0 means unlimited.
func New(maxAssets int) *Store {
	return &Store{
		providers: make(map[string]credentials.Provider),
		tokens:    make(map[string]credentials.Token),
		proxies:   make(map[string]credentials.ProxyConfig),
		profiles:  make(map[string]credentials.ModelProfile),
		maxAssets: maxAssets,
		now:       time.Now,
	}
}

func (s *Store) stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := s.now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

// PutProvider inserts or replaces a provider. Empty ID and timestamps are filled.
func (s *Store) PutProvider(p credentials.Provider) credentials.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	s.providers[p.ID] = p
	return p
}

// PutToken inserts or replaces a token.
func (s *Store) PutToken(t credentials.Token) credentials.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	s.tokens[t.ID] = t
	return t
}

// PutProxyConfig inserts or replaces a proxy config.
func (s *Store) PutProxyConfig(c credentials.ProxyConfig) credentials.ProxyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&c.ID, nil, &c.UpdatedAt)
	s.proxies[c.ID] = c
	return c
}

// PutProfile inserts or replaces a model profile.
func (s *Store) PutProfile(p credentials.ModelProfile) credentials.ModelProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated time.Time
	s.stamp(&p.ID, &p.CreatedAt, &updated)
	s.profiles[p.ID] = p
	return p
}

// Token returns a copy of a stored token.
func (s *Store) Token(id string) (credentials.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	return t, ok
}

// ProxyConfigs returns the user's proxy configs, most recently updated first.
func (s *Store) ProxyConfigs(_ context.Context, userID string) ([]credentials.ProxyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []credentials.ProxyConfig
	for _, c := range s.proxies {
		if c.OwnerID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b credentials.ProxyConfig) int {
		return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// OwnProviders returns userID's providers for vendor, oldest first.
func (s *Store) OwnProviders(_ context.Context, userID, vendor string) ([]credentials.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []credentials.Provider
	for _, p := range s.providers {
		if p.OwnerID == userID && strings.EqualFold(p.Vendor, vendor) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b credentials.Provider) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Provider returns one provider.
func (s *Store) Provider(_ context.Context, id string) (*credentials.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SharedBaseURLProvider returns the most recently updated provider flagged
// as the vendor's shared base URL.
func (s *Store) SharedBaseURLProvider(_ context.Context, vendor string) (*credentials.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *credentials.Provider
	for _, p := range s.providers {
		if !p.SharedBaseURL || !strings.EqualFold(p.Vendor, vendor) {
			continue
		}
		if best == nil || p.UpdatedAt.After(best.UpdatedAt) {
			best = &p
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	return best, nil
}

// UserTokens returns userID's enabled private tokens on providerID, oldest first.
func (s *Store) UserTokens(_ context.Context, providerID, userID string) ([]credentials.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []credentials.Token
	for _, t := range s.tokens {
		if t.ProviderID == providerID && t.UserID == userID && t.Enabled && !t.Shared {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b credentials.Token) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// SharedTokens returns enabled shared tokens of vendor, least recently
// updated first, optionally narrowed to providerID.
func (s *Store) SharedTokens(_ context.Context, vendor, providerID string) ([]credentials.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []credentials.Token
	for _, t := range s.tokens {
		if !t.Enabled || !t.Shared {
			continue
		}
		if providerID != "" && t.ProviderID != providerID {
			continue
		}
		p, ok := s.providers[t.ProviderID]
		if !ok || !strings.EqualFold(p.Vendor, vendor) {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b credentials.Token) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Profile returns a profile owned by userID.
func (s *Store) Profile(_ context.Context, userID, profileID string) (*credentials.ModelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok || p.OwnerID != userID {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// RecordSharedFailure bumps the failure count and starts a cooldown once
// threshold is reached.
func (s *Store) RecordSharedFailure(_ context.Context, tokenID string, threshold int, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}
	t.SharedFailureCount++
	if threshold > 0 && t.SharedFailureCount >= threshold {
		t.SharedDisabledUntil = &until
		t.SharedFailureCount = 0
	}
	t.UpdatedAt = s.now()
	s.tokens[tokenID] = t
	return nil
}

// ResetSharedFailures clears the failure count and cooldown.
func (s *Store) ResetSharedFailures(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}
	t.SharedFailureCount = 0
	t.SharedDisabledUntil = nil
	t.UpdatedAt = s.now()
	s.tokens[tokenID] = t
	return nil
}

// CreateIfAbsent stores rec unless the owner already has a record with its URL.
func (s *Store) CreateIfAbsent(_ context.Context, rec *assets.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.assets {
		if r.OwnerID == rec.OwnerID && r.URL == rec.URL {
			return false, nil
		}
	}
	r := *rec
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if s.maxAssets > 0 && len(s.assets) >= s.maxAssets {
		s.assets = s.assets[1:]
	}
	s.assets = append(s.assets, r)
	return true, nil
}

// Assets returns the records of ownerID, oldest first.
func (s *Store) Assets(ownerID string) []assets.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []assets.Record
	for _, r := range s.assets {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
