package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// tokenBytes is the entropy of a raw bearer token
const tokenBytes = 32

// GenerateToken returns a fresh opaque bearer token
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the deterministic lookup hash of a raw token
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MaskTokenHash renders a stored hash for display
func MaskTokenHash(hash *string) string {
	if hash == nil || len(*hash) < 12 {
		return "revoked"
	}
	h := *hash
	return fmt.Sprintf("sha256:%s...%s", h[:8], h[len(h)-4:])
}

// ExtractToken extracts the bearer token from an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
