package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aromapulse/authgate/src/models"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrBadSignature     = errors.New("bad token signature")
	ErrMalformedPayload = errors.New("malformed token payload")
	ErrExpired          = errors.New("token expired")
)

const headerJSON = `{"alg":"HS256","typ":"JWT"}`

var encodedHeader = EncodeString(headerJSON)

// Claims is the payload of a session token. Provider is set for OAuth logins and
// Role for password logins; either may be absent and is never defaulted here.
type Claims struct {
	UserID    int64           `json:"userId"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Provider  models.Provider `json:"provider,omitempty"`
	Role      string          `json:"role,omitempty"`
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
}

// Identity is the authenticated caller as seen by downstream handlers.
type Identity struct {
	UserID   int64           `json:"userId"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Provider models.Provider `json:"provider,omitempty"`
	Role     string          `json:"role,omitempty"`
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:   c.UserID,
		Email:    c.Email,
		Name:     c.Name,
		Provider: c.Provider,
		Role:     c.Role,
	}
}

type Manager struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now as the source of iat and of the expiry check.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	m := &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs claims with iat set to now and exp to iat+ttl. Any iat/exp on
// the input is ignored.
func (m *Manager) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.UserID <= 0 {
		return "", errors.New("issue token: user id is required")
	}
	if claims.Email == "" {
		return "", errors.New("issue token: email is required")
	}
	lifetime := int64(ttl / time.Second)
	if lifetime <= 0 {
		return "", fmt.Errorf("issue token: invalid lifetime %s", ttl)
	}

	claims.IssuedAt = m.now().Unix()
	claims.ExpiresAt = claims.IssuedAt + lifetime

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := encodedHeader + "." + Encode(payload)
	sig, err := Sign(signingInput, m.secret)
	if err != nil {
		return "", err
	}
	return signingInput + "." + sig, nil
}

// Parse verifies tok and returns its claims. The signature is checked before
// any part of the payload is decoded or trusted.
func (m *Manager) Parse(tok string) (*Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	if err := Verify(parts[0]+"."+parts[1], parts[2], m.secret); err != nil {
		return nil, err
	}

	payload, err := Decode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if claims.UserID <= 0 || claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformedPayload)
	}

	if claims.ExpiresAt <= m.now().Unix() {
		return nil, ErrExpired
	}

	return &claims, nil
}
