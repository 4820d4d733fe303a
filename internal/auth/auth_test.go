package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func testService() *Service {
	return NewService(nil, Config{
		SigningKey: "test-signing-key",
		Issuer:     "oqas-test",
		TokenTTL:   time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testService()
	user := User{ID: 12, Username: "lecturer1", Role: "lecturer", FullName: "Dr. Lecturer"}

	token, err := svc.issueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	got, err := svc.parseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if got.ID != user.ID || got.Role != user.Role || got.FullName != user.FullName {
		t.Fatalf("claims not carried: %+v", got)
	}
}

func TestParseTokenRejects(t *testing.T) {
	svc := testService()
	token, err := svc.issueToken(User{ID: 12, Role: "lecturer"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	other := NewService(nil, Config{SigningKey: "other-key", Issuer: "oqas-test", TokenTTL: time.Hour})
	if _, err := other.parseToken(token); err == nil {
		t.Fatal("expected error for wrong signing key")
	}

	badIssuer := NewService(nil, Config{SigningKey: "test-signing-key", Issuer: "someone-else", TokenTTL: time.Hour})
	if _, err := badIssuer.parseToken(token); err == nil {
		t.Fatal("expected error for issuer mismatch")
	}

	if _, err := svc.parseToken("not-a-jwt"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}

func TestRequireAuth(t *testing.T) {
	svc := testService()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.Role != "lecturer" {
			t.Fatalf("unexpected role %q", user.Role)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	protected := svc.RequireAuth(next)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bogus token, got %d", rec.Code)
	}

	token, err := svc.issueToken(User{ID: 12, Role: "lecturer", FullName: "Dr. Lecturer"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with valid token, got %d (body=%s)", rec.Code, rec.Body.String())
	}
}

func TestRequireRoles(t *testing.T) {
	svc := testService()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := svc.RequireAuth(svc.RequireRoles("lecturer", "admin")(next))

	studentToken, err := svc.issueToken(User{ID: 99, Role: "student"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student role, got %d", rec.Code)
	}

	adminToken, err := svc.issueToken(User{ID: 1, Role: "admin"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin role, got %d", rec.Code)
	}
}

func TestPlaceholderPasswordHash(t *testing.T) {
	first, err := PlaceholderPasswordHash()
	if err != nil {
		t.Fatalf("placeholder hash: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(first), []byte("temp-password")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}

	second, err := PlaceholderPasswordHash()
	if err != nil {
		t.Fatalf("placeholder hash: %v", err)
	}
	if second != first {
		t.Fatal("expected memoized hash to be stable")
	}
}
