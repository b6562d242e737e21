package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const staffClaimsKey contextKey = "staffClaims"

// jwksTTL bounds how long fetched signing keys are trusted before a refetch.
const jwksTTL = time.Hour

// CognitoConfig identifies the user pool that issues staff tokens.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	// JWKSURL overrides the pool's well-known JWKS endpoint. Tests use this.
	JWKSURL string
}

// StaffClaims are the Cognito claims the front desk cares about.
type StaffClaims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email"`
	Groups   []string `json:"cognito:groups"`
	TokenUse string   `json:"token_use"`
	ClientID string   `json:"client_id"`
	Username string   `json:"cognito:username"`
}

// StaffAuth validates Cognito-issued bearer tokens on admin routes. Each
// instance keeps its own JWKS cache so separate pools never share keys.
type StaffAuth struct {
	cfg     CognitoConfig
	issuer  string
	jwksURL string
	client  *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func NewStaffAuth(cfg CognitoConfig) *StaffAuth {
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.Region, cfg.UserPoolID)
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	return &StaffAuth{
		cfg:     cfg,
		issuer:  issuer,
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Middleware rejects requests without a valid staff token. An unconfigured
// pool rejects everything rather than failing open.
func (a *StaffAuth) Middleware(next http.Handler) http.Handler {
	if a.cfg.Region == "" || a.cfg.UserPoolID == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"staff auth not configured"}`, http.StatusUnauthorized)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(auth, "Bearer ")

		token, _, err := jwt.NewParser().ParseUnverified(tokenString, &StaffClaims{})
		if err != nil {
			http.Error(w, `{"error":"invalid token format"}`, http.StatusUnauthorized)
			return
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			http.Error(w, `{"error":"missing key id in token"}`, http.StatusUnauthorized)
			return
		}

		pubKey, err := a.publicKey(kid)
		if err != nil {
			http.Error(w, `{"error":"unable to verify token"}`, http.StatusUnauthorized)
			return
		}

		claims := &StaffClaims{}
		validated, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return pubKey, nil
		}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
		if err != nil || !validated.Valid {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		if err := a.checkAudience(claims); err != nil {
			http.Error(w, `{"error":"invalid audience"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), staffClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// checkAudience pins the token to our app client. ID tokens carry it in aud,
// access tokens in client_id.
func (a *StaffAuth) checkAudience(claims *StaffClaims) error {
	if a.cfg.ClientID == "" {
		return nil
	}
	switch claims.TokenUse {
	case "id":
		aud, _ := claims.GetAudience()
		for _, v := range aud {
			if v == a.cfg.ClientID {
				return nil
			}
		}
		return fmt.Errorf("audience mismatch")
	case "access":
		if claims.ClientID != a.cfg.ClientID {
			return fmt.Errorf("client_id mismatch")
		}
		return nil
	default:
		return fmt.Errorf("unexpected token_use %q", claims.TokenUse)
	}
}

// StaffFromContext retrieves validated staff claims from the request context.
func StaffFromContext(ctx context.Context) (*StaffClaims, bool) {
	claims, ok := ctx.Value(staffClaimsKey).(*StaffClaims)
	return claims, ok
}

func (a *StaffAuth) publicKey(kid string) (*rsa.PublicKey, error) {
	a.mu.RLock()
	if time.Now().Before(a.expires) {
		if key, ok := a.keys[kid]; ok {
			a.mu.RUnlock()
			return key, nil
		}
	}
	a.mu.RUnlock()

	keys, err := a.fetchJWKS()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.keys = keys
	a.expires = time.Now().Add(jwksTTL)
	a.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	return key, nil
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (a *StaffAuth) fetchJWKS() (map[string]*rsa.PublicKey, error) {
	resp, err := a.client.Get(a.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		keys[key.Kid] = pubKey
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}
