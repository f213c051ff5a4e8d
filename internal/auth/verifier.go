package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidToken is returned when a token fails validation for any
	// reason other than a missing token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingToken is returned when no token was supplied.
	ErrMissingToken = errors.New("missing token")
)

// Claims carries the identity fields the relay cares about.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// Verifier validates bearer tokens. With an issuer URL configured it
// verifies RS256 signatures against the issuer's JWKS, refreshed in the
// background. In development a shared HS256 secret can be used instead.
type Verifier struct {
	issuer    string
	devSecret []byte
	client    *http.Client
	logger    zerolog.Logger

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewVerifier creates a verifier. issuerURL takes precedence over devSecret
// when both are set.
func NewVerifier(issuerURL, devSecret string, logger zerolog.Logger) *Verifier {
	return &Verifier{
		issuer:    strings.TrimSuffix(issuerURL, "/"),
		devSecret: []byte(devSecret),
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger.With().Str("component", "auth").Logger(),
		keys:      make(map[string]*rsa.PublicKey),
	}
}

// Start fetches the JWKS and keeps it refreshed until ctx is cancelled.
// No-op when no issuer is configured.
func (v *Verifier) Start(ctx context.Context) error {
	if v.issuer == "" {
		v.logger.Warn().Msg("no identity issuer configured, using dev token secret")
		return nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := v.refreshKeys(ctx); err != nil {
					v.logger.Error().Err(err).Msg("jwks refresh failed")
				}
			}
		}
	}()

	return nil
}

func (v *Verifier) refreshKeys(ctx context.Context) error {
	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", v.issuer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := jwkToPublicKey(k)
		if err != nil {
			v.logger.Warn().Err(err).Str("kid", k.Kid).Msg("skipping unusable jwk")
			continue
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()

	v.logger.Info().Int("keys", len(keys)).Msg("jwks loaded")
	return nil
}

// Validate checks a bearer token and returns its claims.
func (v *Verifier) Validate(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	if v.issuer == "" {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if len(v.devSecret) == 0 {
			return nil, errors.New("no dev token secret configured")
		}
		return v.devSecret, nil
	}

	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("kid not found in token header")
	}

	v.mu.RLock()
	pub, ok := v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key with kid %s not found in jwks", kid)
	}
	return pub, nil
}

// jwkToPublicKey converts a JWK entry to an RSA public key.
func jwkToPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

// TokenFromRequest extracts a bearer token from the query string or the
// Authorization header. Browser WebSocket clients cannot set headers, so the
// query parameter is checked first.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
