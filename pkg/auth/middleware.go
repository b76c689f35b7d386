// Package auth provides the optional JWT bearer-token middleware. It is
// disabled by default; when disabled the middleware passes every request
// through untouched.
package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// publicPaths are always reachable without a token: probes, metrics and the
// service root.
var publicPaths = map[string]bool{
	"/":            true,
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
	"/api/health/": true,
}

// Middleware validates HMAC-signed bearer tokens on protected paths.
type Middleware struct {
	enabled   bool
	secretKey []byte
	logger    *slog.Logger
}

// NewMiddleware creates the auth middleware. When enabled is false the
// middleware is a no-op regardless of the secret.
func NewMiddleware(enabled bool, secretKey string, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		enabled:   enabled,
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

// Middleware returns the handler wrapper.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.extractToken(r)
		if err != nil {
			m.unauthorized(w, err.Error())
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.logger.Warn("Rejected bearer token",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
			m.unauthorized(w, "invalid token")
			return
		}

		if subject, err := claims.GetSubject(); err == nil && subject != "" {
			m.logger.Debug("Authenticated request",
				slog.String("subject", subject),
				slog.String("path", r.URL.Path))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("Authorization header must use the Bearer scheme")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return token, nil
}

func (m *Middleware) validateToken(tokenString string) (jwt.Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return token.Claims, nil
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
