// Package middleware provides HTTP middleware for the RAG chatbot service.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORSMiddleware handles Cross-Origin Resource Sharing for the API.
type CORSMiddleware struct {
	allowedOrigins   []string
	allowedMethods   []string
	allowedHeaders   []string
	allowCredentials bool
	maxAge           int
	logger           *slog.Logger
}

// NewCORSMiddleware creates CORS middleware with restrictive defaults.
func NewCORSMiddleware(config CORSConfig, logger *slog.Logger) *CORSMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(config.AllowedHeaders) == 0 {
		config.AllowedHeaders = []string{
			"Content-Type",
			"Authorization",
			"X-Requested-With",
			"Accept",
			"Origin",
		}
	}

	maxAge := int(config.MaxAge.Seconds())
	if maxAge == 0 {
		maxAge = 86400
	}

	return &CORSMiddleware{
		allowedOrigins:   config.AllowedOrigins,
		allowedMethods:   config.AllowedMethods,
		allowedHeaders:   config.AllowedHeaders,
		allowCredentials: config.AllowCredentials,
		maxAge:           maxAge,
		logger:           logger,
	}
}

// Middleware returns the CORS handler wrapper.
func (c *CORSMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if !c.isOriginAllowed(origin) {
			c.logger.Warn("CORS request blocked, origin not allowed",
				slog.String("origin", origin),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))
			// No CORS headers for disallowed origins.
			next.ServeHTTP(w, r)
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(c.allowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(c.allowedHeaders, ", "))
		if c.allowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if c.maxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(c.maxAge))
		}

		if r.Method == http.MethodOptions {
			requestedMethod := r.Header.Get("Access-Control-Request-Method")
			if requestedMethod != "" && !c.isMethodAllowed(requestedMethod) {
				c.logger.Warn("CORS preflight blocked, method not allowed",
					slog.String("origin", origin),
					slog.String("requested_method", requestedMethod))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks the origin against the allowed list. An empty origin
// means a same-origin request and is always allowed.
func (c *CORSMiddleware) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}

	for _, allowed := range c.allowedOrigins {
		if allowed == "*" {
			return true
		}
		if allowed == origin {
			return true
		}
	}
	return false
}

func (c *CORSMiddleware) isMethodAllowed(method string) bool {
	for _, allowed := range c.allowedMethods {
		if allowed == method {
			return true
		}
	}
	return false
}

// ValidateConfig rejects insecure CORS configurations before the server
// starts.
func ValidateConfig(config CORSConfig) error {
	for _, origin := range config.AllowedOrigins {
		if origin == "*" && config.AllowCredentials {
			return fmt.Errorf("wildcard origin cannot be combined with credentials")
		}
		if strings.Contains(origin, "*") && origin != "*" {
			return fmt.Errorf("partial wildcard origin %q is not supported", origin)
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("origin %q must start with http:// or https://", origin)
		}
	}
	return nil
}
