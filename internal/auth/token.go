// ABOUTME: JWT minting and verification for gateway operator tokens
// ABOUTME: HS256 with a shared secret; minted tokens carry the clawlink issuer

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWrongIssuer  = errors.New("token issued for a different system")
)

// tokenIssuer marks tokens minted by clawlink tooling.
const tokenIssuer = "clawlink"

// clockSkewLeeway absorbs small clock differences between the operator
// machine and the gateway when checking expiry.
const clockSkewLeeway = 30 * time.Second

// TokenVerifier checks a bearer token and reports who it belongs to.
type TokenVerifier interface {
	Verify(tokenString string) (subject string, err error)
}

// JWTVerifier implements TokenVerifier over HS256 signed JWTs. The gateway
// holds the secret; clawlink carries tokens opaquely, except for the fake
// gateway and the token subcommand, which mint their own.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier builds a verifier around a shared HS256 secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(clockSkewLeeway),
		),
	}
}

// Verify checks the signature and expiry and extracts the operator identity
// from the "sub" claim. A token carrying an issuer must carry ours; one
// without an issuer passes, since gateways mint their own tokens.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Issuer != "" && claims.Issuer != tokenIssuer {
		return "", fmt.Errorf("%w: %q", ErrWrongIssuer, claims.Issuer)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// Generate mints a token for the given operator identity, stamped with the
// clawlink issuer and an expiry.
func (v *JWTVerifier) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
