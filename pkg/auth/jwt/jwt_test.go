package jwt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/mdsxbm/tapcanvas/pkg/auth"
)

var testSecret = []byte("test-secret-0123456789")

func sign(t *testing.T, secret []byte, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without secret should fail")
	}
}

func TestAuthenticate(t *testing.T) {
	a, err := New(Config{Secret: testSecret, Issuer: "tapcanvas"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name        string
		token       string
		want        auth.AuthDecision
		wantSubject string
	}{
		{
			name:        "valid sub",
			token:       sign(t, testSecret, jwtlib.MapClaims{"sub": "user-1", "iss": "tapcanvas", "exp": exp}),
			want:        auth.Yes,
			wantSubject: "user-1",
		},
		{
			name:        "userId fallback",
			token:       sign(t, testSecret, jwtlib.MapClaims{"userId": "user-2", "iss": "tapcanvas", "exp": exp}),
			want:        auth.Yes,
			wantSubject: "user-2",
		},
		{
			name:  "wrong secret",
			token: sign(t, []byte("other-secret-xxxxxxxx"), jwtlib.MapClaims{"sub": "u", "iss": "tapcanvas", "exp": exp}),
			want:  auth.No,
		},
		{
			name:  "expired",
			token: sign(t, testSecret, jwtlib.MapClaims{"sub": "u", "iss": "tapcanvas", "exp": time.Now().Add(-time.Hour).Unix()}),
			want:  auth.No,
		},
		{
			name:  "missing exp",
			token: sign(t, testSecret, jwtlib.MapClaims{"sub": "u", "iss": "tapcanvas"}),
			want:  auth.No,
		},
		{
			name:  "wrong issuer",
			token: sign(t, testSecret, jwtlib.MapClaims{"sub": "u", "iss": "elsewhere", "exp": exp}),
			want:  auth.No,
		},
		{
			name:  "no subject",
			token: sign(t, testSecret, jwtlib.MapClaims{"iss": "tapcanvas", "exp": exp}),
			want:  auth.No,
		},
		{
			name:  "opaque api key abstains",
			token: "sk-not-a-jwt",
			want:  auth.Abstain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/tasks", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			result := a.Authenticate(context.Background(), r)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %d, want %d (err %v)", result.Decision, tt.want, result.Err)
			}
			if tt.wantSubject != "" && result.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", result.Identity.Subject, tt.wantSubject)
			}
		})
	}
}

func TestAuthenticate_QueryTokenForStream(t *testing.T) {
	a, err := New(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token := sign(t, testSecret, jwtlib.MapClaims{"sub": "user-9", "exp": time.Now().Add(time.Hour).Unix(), "tier": "pro"})

	r := httptest.NewRequest(http.MethodGet, "/tasks/stream?access_token="+token, nil)
	result := a.Authenticate(context.Background(), r)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (err %v)", result.Decision, result.Err)
	}
	if result.Identity.ServiceTier != "pro" {
		t.Errorf("ServiceTier = %q, want pro", result.Identity.ServiceTier)
	}
}

func TestAuthenticate_NoHeaderAbstains(t *testing.T) {
	a, _ := New(Config{Secret: testSecret})
	result := a.Authenticate(context.Background(), httptest.NewRequest(http.MethodPost, "/tasks", nil))
	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %d, want Abstain", result.Decision)
	}
}
