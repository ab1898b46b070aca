package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func authHandler(t *testing.T, cfg *AuthConfig) http.Handler {
	t.Helper()
	return NewAuthMiddleware(cfg).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hashToken(t *testing.T, token string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash token: %v", err)
	}
	return string(hash)
}

func TestAuth_ValidToken(t *testing.T) {
	handler := authHandler(t, &AuthConfig{
		TokenHash: hashToken(t, "secret-token"),
		Enabled:   true,
	})

	req := httptest.NewRequest(http.MethodPost, "/notify/service", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := authHandler(t, &AuthConfig{
		TokenHash: hashToken(t, "secret-token"),
		Enabled:   true,
	})

	req := httptest.NewRequest(http.MethodPost, "/notify/service", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := authHandler(t, &AuthConfig{
		TokenHash: hashToken(t, "secret-token"),
		Enabled:   true,
	})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notify/service", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuth_SkipPaths(t *testing.T) {
	handler := authHandler(t, &AuthConfig{
		TokenHash: hashToken(t, "secret-token"),
		SkipPaths: []string{"/ping"},
		Enabled:   true,
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for skipped path, got %d", rec.Code)
	}
}

func TestAuth_Disabled(t *testing.T) {
	handler := authHandler(t, &AuthConfig{Enabled: false})

	req := httptest.NewRequest(http.MethodPost, "/notify/service", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 with auth disabled, got %d", rec.Code)
	}
}
