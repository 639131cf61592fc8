// ABOUTME: Unverified token inspection for status display
// ABOUTME: Decodes claims without the signing secret; never use for access decisions

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what a token claims about itself. It comes from an
// unverified parse: good for showing the operator what they are holding,
// worthless as proof.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Expired   bool
}

// Inspect decodes a token's claims without verifying the signature. The
// clawlink CLI uses it to show whose token is configured and whether it has
// already expired, without holding the gateway's secret.
func Inspect(tokenString string) (*TokenInfo, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	info := &TokenInfo{}
	if sub, ok := claims["sub"].(string); ok {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
		info.Expired = time.Now().After(exp.Time)
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}
