package tcrt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of access token claims the probe reports.
type TokenClaims struct {
	Subject   string
	ID        string
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken decodes a JWT access token without verifying its signature.
// The signing key belongs to TCRT; the server stays the only authority on
// validity.
func InspectToken(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parse token: %w", err)
	}

	out := TokenClaims{
		Username: stringClaim(claims, "username"),
		Role:     stringClaim(claims, "role"),
		ID:       stringClaim(claims, "jti"),
	}
	// TCRT puts a numeric user id in sub, which jwt.MapClaims.GetSubject rejects.
	if sub, ok := claims["sub"]; ok {
		out.Subject = fmt.Sprint(sub)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
