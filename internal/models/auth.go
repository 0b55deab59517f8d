package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	EmployeeID string   `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// ActorID returns the user id or "system" when no claims are present.
func (c *JWTClaims) ActorID() string {
	if c == nil || c.UserID == "" {
		return "system"
	}
	return c.UserID
}
