package helpers

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates access tokens issued by the identity provider. This
// service never issues tokens.
type JWTVerifier struct {
	AccessSecret []byte
}

func NewJWTVerifier(accessSecret string) *JWTVerifier {
	return &JWTVerifier{AccessSecret: []byte(accessSecret)}
}

type Claims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token carries role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (v *JWTVerifier) ParseAccessToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, v.AccessSecret)
}

func parseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
