package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// HasScopes reports whether every scope in required is granted.
func (c *Claims) HasScopes(required ...string) bool {
	if c == nil {
		return false
	}
	for _, r := range required {
		if !contains(c.Scopes, r) {
			return false
		}
	}
	return true
}

// HasAnyRole reports whether one of roles is granted. An empty list
// always matches.
func (c *Claims) HasAnyRole(roles ...string) bool {
	if c == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if contains(c.Roles, r) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Roles.
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scopes.
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// ClaimsKey is the gin context key holding *Claims.
const ClaimsKey = "claims"

type claimsCtxKey struct{}

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// Middleware enforces authentication on gin routes.
type Middleware struct {
	verifier TokenVerifier
	logger   zerolog.Logger
	public   map[string]bool
}

// NewMiddleware creates a middleware. Paths in public skip authentication.
func NewMiddleware(verifier TokenVerifier, logger zerolog.Logger, public ...string) *Middleware {
	m := &Middleware{verifier: verifier, logger: logger, public: make(map[string]bool)}
	for _, p := range public {
		m.public[p] = true
	}
	return m
}

// RequireAuth verifies the bearer token. Browsers cannot set headers on a
// websocket or EventSource, so a token query parameter is accepted too.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.public[c.FullPath()] {
			c.Next()
			return
		}

		token := bearerToken(c.Request)
		if token == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("token rejected")
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireScope rejects requests lacking any of scopes.
func (m *Middleware) RequireScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromGin(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !claims.HasScopes(scopes...) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests holding none of roles.
func (m *Middleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromGin(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !claims.HasAnyRole(roles...) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	})
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFromContext returns the claims stored by RequireAuth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims
}

// ClaimsFromGin returns the claims of the current request, or nil.
func ClaimsFromGin(c *gin.Context) *Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
