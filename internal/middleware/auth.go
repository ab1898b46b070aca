package middleware

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds bearer-token authentication configuration
type AuthConfig struct {
	// TokenHash is the bcrypt hash of the shared bearer token
	TokenHash string

	// SkipPaths are paths that don't require authentication
	SkipPaths []string

	// Enabled determines if authentication is enforced
	Enabled bool
}

// AuthMiddleware authenticates requests against a hashed bearer token. The
// plain token never touches the configuration; only its bcrypt hash does.
type AuthMiddleware struct {
	config  *AuthConfig
	skipMap map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(config *AuthConfig) *AuthMiddleware {
	m := &AuthMiddleware{
		config:  config,
		skipMap: make(map[string]bool),
	}
	for _, path := range config.SkipPaths {
		m.skipMap[path] = true
	}
	return m
}

// Wrap wraps an http.Handler with bearer-token authentication
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled || m.skipMap[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.config.TokenHash), []byte(token)); err != nil {
			log.Printf("Rejected request to %s: invalid bearer token", r.URL.Path)
			http.Error(w, "Invalid bearer token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
