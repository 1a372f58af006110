package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims the calendar service understands.
// Scope is a space separated list, as issued by OAuth2 servers.
type Claims struct {
	Email string `json:"email,omitempty"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) HasScope(scope string) bool {
	if scope == "" {
		return true
	}
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

type hs256Verifier struct {
	secret []byte
}

func NewHS256Verifier(secret string) Verifier {
	return hs256Verifier{secret: []byte(secret)}
}

func (v hs256Verifier) Verify(token string) (*Claims, error) {
	return parse(token, []string{jwt.SigningMethodHS256.Alg()}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
}

type jwksVerifier struct {
	keys *JWKSClient
}

// NewJWKSVerifier verifies RS256 tokens against keys published at a JWKS endpoint.
func NewJWKSVerifier(keys *JWKSClient) Verifier {
	return jwksVerifier{keys: keys}
}

func (v jwksVerifier) Verify(token string) (*Claims, error) {
	return parse(token, []string{jwt.SigningMethodRS256.Alg()}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.keys.Get(kid)
	})
}

func parse(token string, methods []string, keyFunc jwt.Keyfunc) (*Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods(methods))
	parsed, err := parser.ParseWithClaims(token, &claims, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// SignHS256 issues a token for local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
