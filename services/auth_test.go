package services

import (
	"strings"
	"testing"
	"time"
)

func newTestAuth() *AuthService {
	return NewAuthService(&Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func TestJWTRoundTrip(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.CreateJWT("Carol@Example.com")
	if err != nil {
		t.Fatalf("CreateJWT: %v", err)
	}
	id, err := auth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}

	want := IdentityFor("carol@example.com")
	if id != want {
		t.Errorf("got %+v, want %+v", id, want)
	}
	if id.DisplayName != "carol" || len(id.UID) != 32 {
		t.Errorf("unexpected identity fields: %+v", id)
	}
}

func TestIdentityForIsStable(t *testing.T) {
	a := IdentityFor(" Dave@Example.com")
	b := IdentityFor("dave@example.com")
	if a != b {
		t.Errorf("identity depends on case or spacing: %+v vs %+v", a, b)
	}
	if IdentityFor("erin@example.com").UID == a.UID {
		t.Error("different emails share a uid")
	}
}

func TestVerifyJWTRejects(t *testing.T) {
	auth := newTestAuth()

	other := NewAuthService(&Config{JWTSecret: "another-secret"})
	foreign, _ := other.CreateJWT("carol@example.com")

	expiredAuth := newTestAuth()
	expiredAuth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredAuth.CreateJWT("carol@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", foreign},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.VerifyJWT(tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMagicLinkSingleUse(t *testing.T) {
	auth := newTestAuth()

	link, err := auth.GenerateMagicLink("frank@example.com", "http://localhost:3001")
	if err != nil {
		t.Fatalf("GenerateMagicLink: %v", err)
	}
	prefix := "http://localhost:3001/api/auth/magic-link?token="
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("unexpected link %q", link)
	}
	token := tokenFromLink(t, link)

	email, err := auth.VerifyMagicLinkToken(token)
	if err != nil || email != "frank@example.com" {
		t.Fatalf("VerifyMagicLinkToken = %q, %v", email, err)
	}
	if _, err := auth.VerifyMagicLinkToken(token); err == nil {
		t.Error("token accepted twice")
	}
}

func TestMagicLinkExpires(t *testing.T) {
	auth := newTestAuth()
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }

	link, _ := auth.GenerateMagicLink("gina@example.com", "http://localhost")
	auth.now = func() time.Time { return issued.Add(magicLinkTTL + time.Second) }

	if _, err := auth.VerifyMagicLinkToken(tokenFromLink(t, link)); err == nil {
		t.Error("expired token accepted")
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, ok := strings.Cut(link, "token=")
	if !ok {
		t.Fatalf("no token in %q", link)
	}
	// Links escape the token for use in a query string
	return strings.ReplaceAll(token, "%3D", "=")
}
