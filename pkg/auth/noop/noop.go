// Package noop provides an authenticator that admits every request as a
// fixed development user.
package noop

import (
	"context"
	"net/http"

	"github.com/mdsxbm/tapcanvas/pkg/auth"
)

// Authenticator always returns Yes with Subject.
type Authenticator struct {
	Subject string
}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	subject := a.Subject
	if subject == "" {
		subject = auth.AnonymousSubject
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, ServiceTier: "default"},
	}
}
