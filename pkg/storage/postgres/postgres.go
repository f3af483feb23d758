// Package postgres provides the PostgreSQL credential and asset store. It
// uses pgx/v5 for connection pooling and embedded SQL migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/assets"
	"github.com/mdsxbm/tapcanvas/pkg/credentials"
	"github.com/mdsxbm/tapcanvas/pkg/storage"
)

// Store is a PostgreSQL-backed credential and asset store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements the store interfaces at compile time.
var (
	_ credentials.Store         = (*Store)(nil)
	_ credentials.CooldownStore = (*Store)(nil)
	_ assets.Store              = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if _, err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const providerColumns = `id, owner_id, name, vendor, base_url, shared_base_url, created_at, updated_at`

const tokenColumns = `t.id, t.provider_id, t.user_id, t.secret_token, t.enabled, t.shared,
	t.shared_failure_count, t.shared_disabled_until, t.created_at, t.updated_at`

func scanProvider(row pgx.CollectableRow) (credentials.Provider, error) {
	var p credentials.Provider
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Vendor, &p.BaseURL, &p.SharedBaseURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanToken(row pgx.CollectableRow) (credentials.Token, error) {
	var t credentials.Token
	err := row.Scan(&t.ID, &t.ProviderID, &t.UserID, &t.SecretToken, &t.Enabled, &t.Shared,
		&t.SharedFailureCount, &t.SharedDisabledUntil, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanProxy(row pgx.CollectableRow) (credentials.ProxyConfig, error) {
	var c credentials.ProxyConfig
	err := row.Scan(&c.ID, &c.OwnerID, &c.Vendor, &c.EnabledVendors, &c.BaseURL, &c.APIKey, &c.Enabled, &c.UpdatedAt)
	return c, err
}

// ProxyConfigs returns the user's proxy configs, most recently updated first.
func (s *Store) ProxyConfigs(ctx context.Context, userID string) ([]credentials.ProxyConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, vendor, enabled_vendors, base_url, api_key, enabled, updated_at
		FROM proxy_configs
		WHERE owner_id = $1
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying proxy configs: %w", err)
	}
	return pgx.CollectRows(rows, scanProxy)
}

// OwnProviders returns userID's providers for vendor, oldest first.
func (s *Store) OwnProviders(ctx context.Context, userID, vendor string) ([]credentials.Provider, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE owner_id = $1 AND lower(vendor) = lower($2)
		ORDER BY created_at, id
	`, userID, vendor)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	return pgx.CollectRows(rows, scanProvider)
}

// Provider returns one provider.
func (s *Store) Provider(ctx context.Context, id string) (*credentials.Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying provider: %w", err)
	}
	return collectOne(rows, scanProvider)
}

// SharedBaseURLProvider returns the most recently updated provider flagged
// as the vendor's shared base URL.
func (s *Store) SharedBaseURLProvider(ctx context.Context, vendor string) (*credentials.Provider, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE shared_base_url AND lower(vendor) = lower($1)
		ORDER BY updated_at DESC, id
		LIMIT 1
	`, vendor)
	if err != nil {
		return nil, fmt.Errorf("querying shared base url: %w", err)
	}
	return collectOne(rows, scanProvider)
}

// UserTokens returns userID's enabled private tokens on providerID, oldest first.
func (s *Store) UserTokens(ctx context.Context, providerID, userID string) ([]credentials.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens t
		WHERE t.provider_id = $1 AND t.user_id = $2 AND t.enabled AND NOT t.shared
		ORDER BY t.created_at, t.id
	`, providerID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	return pgx.CollectRows(rows, scanToken)
}

// SharedTokens returns enabled shared tokens of vendor, least recently
// updated first, optionally narrowed to providerID.
func (s *Store) SharedTokens(ctx context.Context, vendor, providerID string) ([]credentials.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens t
		JOIN providers p ON p.id = t.provider_id
		WHERE t.enabled AND t.shared AND lower(p.vendor) = lower($1)
		  AND ($2 = '' OR t.provider_id = $2)
		ORDER BY t.updated_at, t.id
	`, vendor, providerID)
	if err != nil {
		return nil, fmt.Errorf("querying shared tokens: %w", err)
	}
	return pgx.CollectRows(rows, scanToken)
}

// Profile returns a profile owned by userID.
func (s *Store) Profile(ctx context.Context, userID, profileID string) (*credentials.ModelProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, provider_id, name, kind, model_key, created_at
		FROM model_profiles
		WHERE id = $1 AND owner_id = $2
	`, profileID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return collectOne(rows, func(row pgx.CollectableRow) (credentials.ModelProfile, error) {
		var p credentials.ModelProfile
		var kind string
		err := row.Scan(&p.ID, &p.OwnerID, &p.ProviderID, &p.Name, &kind, &p.ModelKey, &p.CreatedAt)
		p.Kind = api.TaskKind(kind)
		return p, err
	})
}

// RecordSharedFailure bumps the failure count in a single statement. Once
// threshold is reached the token is disabled until the given time and the
// count starts over.
func (s *Store) RecordSharedFailure(ctx context.Context, tokenID string, threshold int, until time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tokens SET
			shared_failure_count = CASE
				WHEN $2 > 0 AND shared_failure_count + 1 >= $2 THEN 0
				ELSE shared_failure_count + 1 END,
			shared_disabled_until = CASE
				WHEN $2 > 0 AND shared_failure_count + 1 >= $2 THEN $3
				ELSE shared_disabled_until END,
			updated_at = now()
		WHERE id = $1
	`, tokenID, threshold, until)
	if err != nil {
		return fmt.Errorf("recording shared failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ResetSharedFailures clears the failure count and cooldown.
func (s *Store) ResetSharedFailures(ctx context.Context, tokenID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tokens
		SET shared_failure_count = 0, shared_disabled_until = NULL, updated_at = now()
		WHERE id = $1
	`, tokenID)
	if err != nil {
		return fmt.Errorf("resetting shared failures: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateIfAbsent inserts rec unless the owner already has a record with its URL.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *assets.Record) (bool, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO assets (
			id, owner_id, name, type, url, thumbnail_url,
			vendor, task_kind, prompt, model_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner_id, url) DO NOTHING
	`,
		id, rec.OwnerID, rec.Name, string(rec.Type), rec.URL, nullString(rec.ThumbnailURL),
		rec.Vendor, string(rec.TaskKind), rec.Prompt, rec.ModelKey, created,
	)
	if err != nil {
		return false, fmt.Errorf("inserting asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Assets returns the records of ownerID, newest first.
func (s *Store) Assets(ctx context.Context, ownerID string, limit int) ([]assets.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, type, url, coalesce(thumbnail_url, ''),
		       vendor, task_kind, prompt, model_key, created_at
		FROM assets
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (assets.Record, error) {
		var r assets.Record
		var typ, kind string
		err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &typ, &r.URL, &r.ThumbnailURL,
			&r.Vendor, &kind, &r.Prompt, &r.ModelKey, &r.CreatedAt)
		r.Type, r.TaskKind = api.AssetType(typ), api.TaskKind(kind)
		return r, err
	})
}

// CreateProvider inserts a provider, filling an empty ID.
func (s *Store) CreateProvider(ctx context.Context, p *credentials.Provider) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO providers (id, owner_id, name, vendor, base_url, shared_base_url)
		VALUES ($1, $2, $3, lower($4), $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.OwnerID, p.Name, p.Vendor, p.BaseURL, p.SharedBaseURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	return insertError("provider", err)
}

// CreateToken inserts a token, filling an empty ID.
func (s *Store) CreateToken(ctx context.Context, t *credentials.Token) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (id, provider_id, user_id, secret_token, enabled, shared,
			shared_failure_count, shared_disabled_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, t.ID, t.ProviderID, t.UserID, t.SecretToken, t.Enabled, t.Shared,
		t.SharedFailureCount, t.SharedDisabledUntil).Scan(&t.CreatedAt, &t.UpdatedAt)
	return insertError("token", err)
}

// Token returns one token by id.
func (s *Store) Token(ctx context.Context, id string) (*credentials.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tokenColumns+` FROM tokens t WHERE t.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return collectOne(rows, scanToken)
}

// UpsertProxyConfig inserts or replaces a proxy config.
func (s *Store) UpsertProxyConfig(ctx context.Context, c *credentials.ProxyConfig) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	vendors := make([]string, 0, len(c.EnabledVendors))
	for _, v := range c.EnabledVendors {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			vendors = append(vendors, v)
		}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO proxy_configs (id, owner_id, vendor, enabled_vendors, base_url, api_key, enabled)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			enabled_vendors = EXCLUDED.enabled_vendors,
			base_url = EXCLUDED.base_url,
			api_key = EXCLUDED.api_key,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING updated_at
	`, c.ID, c.OwnerID, c.Vendor, vendors, c.BaseURL, c.APIKey, c.Enabled).Scan(&c.UpdatedAt)
	return insertError("proxy config", err)
}

// CreateProfile inserts a model profile, filling an empty ID.
func (s *Store) CreateProfile(ctx context.Context, p *credentials.ModelProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO model_profiles (id, owner_id, provider_id, name, kind, model_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.ID, p.OwnerID, p.ProviderID, p.Name, string(p.Kind), p.ModelKey).Scan(&p.CreatedAt)
	return insertError("profile", err)
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// collectOne returns the single row, or storage.ErrNotFound.
func collectOne[T any](rows pgx.Rows, fn pgx.RowToFunc[T]) (*T, error) {
	v, err := pgx.CollectExactlyOneRow(rows, fn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func insertError(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDuplicateKey(err):
		return storage.ErrConflict
	}
	return fmt.Errorf("inserting %s: %w", what, err)
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
