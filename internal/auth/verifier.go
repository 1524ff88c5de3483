package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/camera-remote/ccb/internal/config"
)

// ErrInvalidToken is wrapped by every verification failure.
var ErrInvalidToken = errors.New("invalid token")

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// RS256
	PublicKeyPEM string
	JWKSURL      string

	// HS256
	SecretKey string

	Algorithm string // "RS256" or "HS256"

	JWKSRefreshInterval time.Duration
	JWKSCacheTimeout    time.Duration
}

// ConfigFromAuth builds a VerifierConfig from the auth section.
func ConfigFromAuth(cfg config.AuthConfig) VerifierConfig {
	return VerifierConfig{
		PublicKeyPEM:        cfg.PublicKeyPEM,
		JWKSURL:             cfg.JWKSURL,
		SecretKey:           cfg.Secret,
		Algorithm:           cfg.Algorithm,
		JWKSRefreshInterval: 5 * time.Minute,
		JWKSCacheTimeout:    time.Hour,
	}
}

// JWK represents a JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet represents a JSON Web Key Set.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type jwksEntry struct {
	key     *rsa.PublicKey
	fetched time.Time
}

// Verifier checks RS256 and HS256 tokens.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey

	// fetchMu serializes JWKS downloads; mu guards the cache.
	fetchMu   sync.Mutex
	mu        sync.RWMutex
	jwksCache map[string]jwksEntry
	lastFetch time.Time

	httpClient *http.Client
}

// NewVerifier creates a verifier. With a JWKS URL the key set is fetched
// once up front.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{
		config:     config,
		jwksCache:  make(map[string]jwksEntry),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	switch config.Algorithm {
	case "RS256":
		if config.PublicKeyPEM == "" && config.JWKSURL == "" {
			return nil, fmt.Errorf("RS256 requires a public key or a JWKS URL")
		}
		if config.PublicKeyPEM != "" {
			if err := v.loadPublicKeyFromPEM(config.PublicKeyPEM); err != nil {
				return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
			}
		}
		if config.JWKSURL != "" {
			if err := v.fetchJWKS(); err != nil {
				return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
			}
		}
	case "HS256":
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies a token and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, v.keyFunc, jwt.WithValidMethods([]string{v.config.Algorithm}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return extractClaims(claims)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.config.Algorithm == "HS256" {
		return []byte(v.config.SecretKey), nil
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		if v.publicKey == nil {
			return nil, fmt.Errorf("no public key available")
		}
		return v.publicKey, nil
	}
	return v.getKeyFromJWKS(kid)
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrInvalidToken)
	}
	roles, err := stringSlice(claims, "roles")
	if err != nil {
		return nil, err
	}
	scopes, err := stringSlice(claims, "scopes")
	if err != nil {
		return nil, err
	}
	if !allKnown(roles, RoleViewer, RoleController) {
		return nil, fmt.Errorf("%w: invalid roles %v", ErrInvalidToken, roles)
	}
	if !allKnown(scopes, ScopeRead, ScopeControl, ScopeTelemetry) {
		return nil, fmt.Errorf("%w: invalid scopes %v", ErrInvalidToken, scopes)
	}
	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func stringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	value, ok := claims[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing claim %s", ErrInvalidToken, key)
	}
	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s claim is not an array", ErrInvalidToken, key)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s claim has a non-string entry", ErrInvalidToken, key)
		}
		out[i] = s
	}
	return out, nil
}

// allKnown reports whether values is non-empty and every entry is allowed.
func allKnown(values []string, allowed ...string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		found := false
		for _, a := range allowed {
			if v == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (v *Verifier) loadPublicKeyFromPEM(pemData string) error {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("not an RSA public key")
	}

	v.publicKey = rsaPub
	return nil
}

// fetchJWKS downloads the key set and replaces the cache.
func (v *Verifier) fetchJWKS() error {
	resp, err := v.httpClient.Get(v.config.JWKSURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	var jwks JWKSet
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	now := time.Now()
	cache := make(map[string]jwksEntry, len(jwks.Keys))
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" || key.Alg != "RS256" {
			continue
		}
		pubKey, err := jwkToRSAPublicKey(key)
		if err != nil {
			continue
		}
		cache[key.Kid] = jwksEntry{key: pubKey, fetched: now}
	}

	v.mu.Lock()
	v.jwksCache = cache
	v.lastFetch = now
	v.mu.Unlock()
	return nil
}

// getKeyFromJWKS returns the cached key for kid, refetching the set when
// the entry is stale or unknown and the refresh interval has passed.
func (v *Verifier) getKeyFromJWKS(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	entry, exists := v.jwksCache[kid]
	lastFetch := v.lastFetch
	v.mu.RUnlock()

	if exists && time.Since(entry.fetched) < v.config.JWKSCacheTimeout {
		return entry.key, nil
	}
	if v.config.JWKSURL == "" {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	stale := exists
	if !stale && time.Since(lastFetch) <= v.config.JWKSRefreshInterval {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	v.fetchMu.Lock()
	v.mu.RLock()
	refreshed := v.lastFetch.After(lastFetch)
	v.mu.RUnlock()
	var err error
	if !refreshed {
		err = v.fetchJWKS()
	}
	v.fetchMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
	}

	v.mu.RLock()
	entry, exists = v.jwksCache[kid]
	v.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("key not found: %s", kid)
	}
	return entry.key, nil
}

func jwkToRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	n, err := base64URLDecode(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	e, err := base64URLDecode(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 {
		return nil, fmt.Errorf("empty modulus or exponent")
	}

	var exp int
	for _, b := range e {
		exp = exp<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: exp,
	}, nil
}

// base64URLDecode accepts base64url with or without padding.
func base64URLDecode(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
