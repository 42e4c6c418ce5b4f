package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SupabaseClaims is the payload of an access token issued by Supabase Auth.
type SupabaseClaims struct {
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTClaims is the authenticated principal attached to each request: the
// token subject joined with the role stored on the user's profile.
type JWTClaims struct {
	UserID    string    `json:"user_id"`
	Role      UserRole  `json:"role"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the principal holds one of roles.
func (c *JWTClaims) HasRole(roles ...UserRole) bool {
	if c == nil {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
