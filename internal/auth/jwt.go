package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/gatekeep/internal/models"
)

// Claims represents the claims embedded in every issued token.
type Claims struct {
	Type models.TokenType `json:"type"`
	jwt.RegisteredClaims
}

var (
	errEmptySecret  = errors.New("jwt: secret must be provided")
	errEmptySubject = errors.New("jwt: user id is required")
	errUnknownType  = errors.New("jwt: unknown token type")
)

// GenerateToken signs an HS256 token carrying sub, iat, exp and type.
// The output depends only on its arguments, so identical inputs yield identical tokens.
func GenerateToken(userID string, expires time.Time, tokenType models.TokenType, secret string, issuedAt time.Time) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	if userID == "" {
		return "", errEmptySubject
	}
	if !tokenType.Valid() {
		return "", fmt.Errorf("%w %q", errUnknownType, tokenType)
	}

	claims := &Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature and expiry, returning the embedded claims.
func ParseToken(tokenString, secret string, now func() time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}
	if secret == "" {
		return nil, errEmptySecret
	}
	if now == nil {
		now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("jwt: missing subject claim")
	}
	if !claims.Type.Valid() {
		return nil, fmt.Errorf("%w %q", errUnknownType, claims.Type)
	}
	return &claims, nil
}
