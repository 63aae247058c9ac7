package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ControlPlaneSubject is the subject every control-plane token carries
const ControlPlaneSubject = "control-plane"

// Claims represents control-plane JWT claims
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ControlPlane mints and validates HS256 tokens for provisioning calls
type ControlPlane struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewControlPlane creates a control-plane token authority
func NewControlPlane(secret string, ttl time.Duration) (*ControlPlane, error) {
	if secret == "" {
		return nil, errors.New("control-plane secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ControlPlane{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateToken mints a token valid for ttl, or the default TTL when ttl is zero
func (c *ControlPlane) GenerateToken(ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	claims := &Claims{
		Scope: "provision",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ControlPlaneSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign control-plane token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a control-plane token and returns its claims
func (c *ControlPlane) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(ControlPlaneSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
