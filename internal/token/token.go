package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CategoryAccess  = "access"
	CategoryRefresh = "refresh"
)

var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
)

type Claims struct {
	Category string `json:"category"`
	Role     string `json:"role"`
	RealName string `json:"realName"`
	jwt.RegisteredClaims
}

func (c *Claims) Username() string { return c.Subject }

// Codec creates and verifies the signed bearer tokens the whole service
// runs on. The signing secret is set once at startup.
type Codec struct {
	Secret []byte
}

func (tc *Codec) Issue(category, username, role, realName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Category: category,
		Role:     role,
		RealName: realName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(tc.Secret)
}

func (tc *Codec) Verify(tokenStr string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return tc.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !tkn.Valid {
		return nil, ErrMalformed
	}
	return &claims, nil
}
