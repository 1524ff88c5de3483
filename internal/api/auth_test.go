package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camera-remote/ccb/internal/auth"
)

const testSecret = "camera-bridge-test-secret"

func signToken(t *testing.T, roles, scopes []interface{}) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "operator-7",
		"roles":  roles,
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticatedRoutes(t *testing.T) {
	v, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: "HS256", SecretKey: testSecret})
	require.NoError(t, err)
	st := newTestStack(t, true, func(d *Deps) {
		d.Auth = auth.NewMiddleware(v, zerolog.Nop(), PublicPaths...)
	})

	viewer := signToken(t, []interface{}{auth.RoleViewer}, []interface{}{auth.ScopeRead, auth.ScopeTelemetry})
	controller := signToken(t, []interface{}{auth.RoleController},
		[]interface{}{auth.ScopeRead, auth.ScopeControl, auth.ScopeTelemetry})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"page is public", http.MethodGet, "/", "", http.StatusOK},
		{"camera needs a token", http.MethodGet, "/api/v1/camera", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/camera", "not-a-jwt", http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/api/v1/camera", viewer, http.StatusOK},
		{"viewer cannot change settings", http.MethodPost, "/api/v1/camera/settings", viewer, http.StatusForbidden},
		{"viewer cannot open the remote socket", http.MethodGet, "/ws", viewer, http.StatusForbidden},
		{"controller measures", http.MethodPost, "/api/v1/exposure/measure", controller, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			st.server.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
