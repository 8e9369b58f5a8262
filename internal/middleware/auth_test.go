package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/duochat/duochat/internal/auth"
)

const testSecret = "middleware-test-secret"

func authedHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := UserID(r.Context()); got != wantUser {
			t.Errorf("Expected user %q on context, got %q", wantUser, got)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	token, err := auth.Sign(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	handler := RequireAuth(auth.NewJWTVerifier(testSecret), zap.NewNop())(authedHandler(t, "user-1"))

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Result().StatusCode)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler := RequireAuth(auth.NewJWTVerifier(testSecret), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler must not run without a token")
		}))

	req := httptest.NewRequest("GET", "/api/users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Result().StatusCode)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	handler := RequireAuth(auth.NewJWTVerifier(testSecret), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler must not run with a malformed header")
		}))

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Result().StatusCode)
	}
}

func TestRequireAuth_BadToken(t *testing.T) {
	handler := RequireAuth(auth.NewJWTVerifier(testSecret), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler must not run with an invalid token")
		}))

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Result().StatusCode)
	}
}

func TestUserID_Unset(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := UserID(req.Context()); got != "" {
		t.Errorf("Expected empty user id, got %q", got)
	}
}
