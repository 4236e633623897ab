package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind tells session and email tokens apart
type TokenKind string

const (
	TokenKindSession TokenKind = "session"
	TokenKindEmail   TokenKind = "email"
)

// TokenClaims is the signed envelope around a single payload claim.
// The payload travels in sub.
type TokenClaims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"knd,omitempty"`
}

// Payload returns the identity id or email carried by the token
func (c *TokenClaims) Payload() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time, zero when the token never expires
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
