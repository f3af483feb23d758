package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockAuthn struct {
	result AuthResult
}

func (m *mockAuthn) Authenticate(_ context.Context, _ *http.Request) AuthResult {
	return m.result
}

func TestAuthChain(t *testing.T) {
	yesAlice := &mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice"}}}
	no := &mockAuthn{result: AuthResult{Decision: No, Err: ErrUnauthenticated}}
	abstain := &mockAuthn{result: AuthResult{Decision: Abstain}}

	tests := []struct {
		name        string
		chain       *AuthChain
		want        AuthDecision
		wantSubject string
	}{
		{"first yes stops", &AuthChain{Authenticators: []Authenticator{yesAlice, no}, DefaultDecision: No}, Yes, "alice"},
		{"first no stops", &AuthChain{Authenticators: []Authenticator{no, yesAlice}, DefaultDecision: No}, No, ""},
		{"abstain continues", &AuthChain{Authenticators: []Authenticator{abstain, yesAlice}, DefaultDecision: No}, Yes, "alice"},
		{"all abstain default reject", &AuthChain{Authenticators: []Authenticator{abstain}, DefaultDecision: No}, No, ""},
		{"all abstain default allow", &AuthChain{Authenticators: []Authenticator{abstain}, DefaultDecision: Yes}, Yes, AnonymousSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			result := tt.chain.Authenticate(context.Background(), r)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %d, want %d", result.Decision, tt.want)
			}
			if tt.wantSubject != "" && result.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", result.Identity.Subject, tt.wantSubject)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"header", http.MethodPost, "/tasks", "Bearer abc", "abc", true},
		{"basic scheme", http.MethodPost, "/tasks", "Basic xyz", "", false},
		{"empty bearer", http.MethodPost, "/tasks", "Bearer ", "", true},
		{"query on GET", http.MethodGet, "/tasks/stream?access_token=q1", "", "q1", true},
		{"query ignored on POST", http.MethodPost, "/tasks?access_token=q1", "", "", false},
		{"none", http.MethodGet, "/tasks/stream", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(r)
			if token != tt.wantToken || ok != tt.wantOK {
				t.Errorf("BearerToken() = (%q, %v), want (%q, %v)", token, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	if got := UserID(context.Background()); got != "" {
		t.Errorf("UserID(empty) = %q, want empty", got)
	}
	ctx := SetIdentity(context.Background(), &Identity{Subject: "u-1"})
	if got := UserID(ctx); got != "u-1" {
		t.Errorf("UserID() = %q, want u-1", got)
	}
}

func TestInProcessLimiter(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{
		"pro": {RequestsPerMinute: 120, Burst: 3},
	}, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	free := &Identity{Subject: "alice"}
	for i := 0; i < 2; i++ {
		if err := l.Allow(context.Background(), free); err != nil {
			t.Fatalf("request %d: unexpected %v", i, err)
		}
	}
	if err := l.Allow(context.Background(), free); err != ErrTooManyRequests {
		t.Fatalf("third request: err = %v, want ErrTooManyRequests", err)
	}

	pro := &Identity{Subject: "bob", ServiceTier: "pro"}
	for i := 0; i < 3; i++ {
		if err := l.Allow(context.Background(), pro); err != nil {
			t.Fatalf("pro request %d: unexpected %v", i, err)
		}
	}

	// One default-tier token refills every 30s.
	now = now.Add(31 * time.Second)
	if err := l.Allow(context.Background(), free); err != nil {
		t.Errorf("after refill: unexpected %v", err)
	}
}

func TestInProcessLimiter_Unlimited(t *testing.T) {
	l := NewInProcessLimiter(nil, 0)
	for i := 0; i < 100; i++ {
		if err := l.Allow(context.Background(), &Identity{Subject: "x"}); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
}
