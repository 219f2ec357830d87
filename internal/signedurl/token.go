package signedurl

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	Permission Permission `json:"perm"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies HMAC-signed access tokens for backends that
// have no native URL signing (the local filesystem). A token binds the object
// key, the container it lives in, the permission and the expiry.
type TokenSigner struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// NewTokenSigner creates a signer keyed by secret and scoped to audience
// (the container name).
func NewTokenSigner(secret, audience string) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("token signer: empty secret")
	}
	return &TokenSigner{secret: []byte(secret), audience: audience, now: time.Now}, nil
}

// Sign returns a read token for key valid for ttl.
func (s *TokenSigner) Sign(key string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Permission: Read,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks that token grants read access to key right now.
func (s *TokenSigner) Verify(token, key string) error {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(s.audience),
		jwt.WithSubject(key),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Permission != Read {
		return fmt.Errorf("%w: permission %q", ErrInvalidToken, claims.Permission)
	}
	return nil
}
