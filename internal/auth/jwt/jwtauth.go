// Package jwt issues and verifies the admin tokens guarding report and sync
// endpoints.
package jwt

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// Config holds the signing secret and default token lifetime.
type Config struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// New creates the HS256 signer for c.
func New(c Config) (*jwtauth.JWTAuth, error) {
	if c.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return jwtauth.New("HS256", []byte(c.Secret), nil), nil
}

// VerifyToken checks the token signature and expiry and returns its subject.
func VerifyToken(jwtAuth *jwtauth.JWTAuth, token string) (string, error) {
	t, err := jwtauth.VerifyToken(jwtAuth, token)
	if err != nil {
		return "", err
	}
	return t.Subject(), nil
}

// NewToken creates a JWT with a subject claim naming the operator, used in
// the audit log of report runs.
func NewToken(jwtAuth *jwtauth.JWTAuth, ttl time.Duration, subject string) (string, error) {
	claims := map[string]interface{}{
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	if subject != "" {
		claims["sub"] = subject
	}
	_, ts, err := jwtAuth.Encode(claims)
	if err != nil {
		return ts, err
	}
	return ts, nil
}
