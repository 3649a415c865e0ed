package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is an issued bearer token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims represents the bearer JWT payload. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an access token for the given user and role.
func Issue(userID, role, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns its claims. Expired or malformed
// tokens fail; so do tokens signed with anything but HS256.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
