// Package signedurl issues read-only, time-limited access grants for stored
// objects. Grants are derived fresh from backend credentials on every call and
// are never persisted.
package signedurl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swinglab/mediacore/internal/metrics"
)

// Permission is the access scope encoded in a grant.
type Permission string

// Read is the only permission the service hands out.
const Read Permission = "r"

var (
	// ErrInvalidTTL is returned when a grant would not expire in the future.
	ErrInvalidTTL = errors.New("signed url ttl must be positive")
	// ErrInvalidToken is returned when a presented token fails verification.
	ErrInvalidToken = errors.New("invalid or expired access token")
)

// Presigner derives a backend-native signed GET URL for key. Both storage
// backends implement it.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Grant is a freshly derived access grant.
type Grant struct {
	ObjectKey  string     `json:"object_key"`
	URL        string     `json:"url"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Permission Permission `json:"permission"`
}

// Expired reports whether the grant is no longer usable at t.
func (g *Grant) Expired(t time.Time) bool {
	return !t.Before(g.ExpiresAt)
}

// Issuer issues grants against a single backend.
type Issuer struct {
	presigner Presigner
	now       func() time.Time
}

// NewIssuer creates an Issuer backed by p.
func NewIssuer(p Presigner) *Issuer {
	return &Issuer{presigner: p, now: time.Now}
}

// Issue derives a new read-only grant for key that expires after ttl.
func (i *Issuer) Issue(ctx context.Context, key string, ttl time.Duration) (*Grant, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("signed url: empty object key")
	}

	issuedAt := i.now()
	u, err := i.presigner.PresignGet(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %q: %w", key, err)
	}
	return &Grant{
		ObjectKey:  key,
		URL:        u,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
		Permission: Read,
	}, nil
}

// Profile binds an Issuer to a named TTL, e.g. "client" or "proxy".
func (i *Issuer) Profile(name string, ttl time.Duration) *Profile {
	return &Profile{issuer: i, name: name, ttl: ttl}
}

// Profile issues grants with a fixed, configured TTL.
type Profile struct {
	issuer *Issuer
	name   string
	ttl    time.Duration
}

// Name returns the profile name used in metrics.
func (p *Profile) Name() string { return p.name }

// TTL returns the configured grant lifetime.
func (p *Profile) TTL() time.Duration { return p.ttl }

// Issue derives a new grant for key with the profile's TTL.
func (p *Profile) Issue(ctx context.Context, key string) (*Grant, error) {
	g, err := p.issuer.Issue(ctx, key, p.ttl)
	if err != nil {
		return nil, err
	}
	metrics.RecordSignedURL(p.name)
	return g, nil
}
