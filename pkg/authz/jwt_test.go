package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("top-secret"), "grc-engine")

	token, err := v.Issue(Identity{User: "alice", Groups: []string{RoleReviewer}}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.User != "alice" {
		t.Errorf("user = %q, want alice", id.User)
	}
	if len(id.Groups) != 1 || id.Groups[0] != RoleReviewer {
		t.Errorf("groups = %v, want [%s]", id.Groups, RoleReviewer)
	}
}

func TestJWTVerifierRejectsBadTokens(t *testing.T) {
	v := NewJWTVerifier([]byte("top-secret"), "grc-engine")
	other := NewJWTVerifier([]byte("different-secret"), "grc-engine")

	good, err := v.Issue(Identity{User: "alice"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := other.Verify(good); err == nil {
		t.Error("expected verification to fail with wrong secret")
	}

	expired, err := v.Issue(Identity{User: "alice"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := v.Verify(expired); err == nil {
		t.Error("expected verification to fail for expired token")
	}

	if _, err := v.Verify("not-a-token"); err == nil {
		t.Error("expected verification to fail for garbage input")
	}
}

func TestBearerMiddleware(t *testing.T) {
	v := NewJWTVerifier([]byte("top-secret"), "")
	token, err := v.Issue(Identity{User: "bob", Groups: []string{RoleAuthor}}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	var seen Identity
	handler := BearerMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/frameworks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if seen.User != "bob" {
		t.Errorf("user = %q, want bob", seen.User)
	}
}

func TestBearerMiddlewareRejectsInvalidToken(t *testing.T) {
	v := NewJWTVerifier([]byte("top-secret"), "")

	handler := BearerMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/frameworks", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
