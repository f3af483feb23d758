package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the user id (required, non-empty).
	Subject string

	// ServiceTier selects the inbound rate limit.
	ServiceTier string

	// Metadata carries authenticator-specific claims such as "email".
	Metadata map[string]string
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain. Yes admits
	// the request as AnonymousSubject; use it for local development only.
	DefaultDecision AuthDecision
}

// AnonymousSubject is the user id given to requests admitted by default.
const AnonymousSubject = "anonymous"

// Authenticate runs the chain. Stops on the first Yes or No.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, ServiceTier: "default"},
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}

// BearerToken extracts the bearer credential from the Authorization header.
// GET requests may carry it as an access_token query parameter instead,
// since browser EventSource connections cannot set headers.
// ok is false when the request carries no bearer credential at all.
func BearerToken(r *http.Request) (token string, ok bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		rest, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return "", false
		}
		return strings.TrimSpace(rest), true
	}
	if r.Method == http.MethodGet {
		if q := r.URL.Query().Get("access_token"); q != "" {
			return q, true
		}
	}
	return "", false
}
