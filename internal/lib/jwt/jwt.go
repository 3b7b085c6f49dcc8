package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"albumvault/internal/domain/models"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")
	ErrTokenExpired       = errors.New("token expired")
)

// SessionClaims identify a cached session key. The key itself never leaves the server.
type SessionClaims struct {
	Address string
	Scope   string
	Expires time.Time
}

// NewSessionToken signs a token that expires together with the session key.
func NewSessionToken(key *models.SessionKey, secret string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["sub"] = key.Address
	claims["scope"] = key.PolicyScope
	claims["iat"] = key.CreatedAt.Unix()
	claims["exp"] = key.ExpiresAt.Unix()

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseSessionToken verifies the HS256 signature and expiry at now.
func ParseSessionToken(tokenString, secret string, now time.Time) (SessionClaims, error) {
	const op = "lib.jwt.ParseSessionToken"

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return SessionClaims{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}
	if err != nil || !token.Valid {
		return SessionClaims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, fmt.Errorf("%s: %w", op, ErrInvalidTokenClaims)
	}

	address, _ := claims["sub"].(string)
	scope, _ := claims["scope"].(string)
	exp, err := claims.GetExpirationTime()
	if address == "" || scope == "" || err != nil || exp == nil {
		return SessionClaims{}, fmt.Errorf("%s: %w", op, ErrInvalidTokenClaims)
	}

	return SessionClaims{Address: address, Scope: scope, Expires: exp.Time}, nil
}
