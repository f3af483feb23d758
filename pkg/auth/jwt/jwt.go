// Package jwt authenticates session tokens issued by the account service.
// Tokens are HMAC-signed JWTs; the user id is read from a configurable claim.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/mdsxbm/tapcanvas/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC signing key shared with the issuer.
	Secret []byte

	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// UserClaim names the claim holding the user id. Default: "sub".
	// "userId" is tried as a fallback when UserClaim is absent.
	UserClaim string

	// TierClaim names the claim holding the service tier. Default: "tier".
	TierClaim string

	// Leeway tolerates clock skew on exp/nbf. Default: 30s.
	Leeway time.Duration
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.Leeway == 0 {
		c.Leeway = 30 * time.Second
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
}

// New creates a JWT authenticator. It fails when no secret is configured.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithLeeway(cfg.Leeway),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}, nil
}

// Authenticate returns Abstain for requests without a bearer token or with a
// token that is not a JWT, No for JWTs that fail validation, Yes otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return a.config.Secret, nil
	})
	if errors.Is(err, jwtlib.ErrTokenMalformed) {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if err != nil {
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		subject = claimString(claims, "userId")
	}
	if subject == "" {
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("token has no %q claim", a.config.UserClaim)}
	}

	id := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
	}
	if email := claimString(claims, "email"); email != "" {
		id.Metadata = map[string]string{"email": email}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

func claimString(claims jwtlib.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
