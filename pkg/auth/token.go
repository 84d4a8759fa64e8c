// Package auth signs in staff members and issues the tokens the gateway
// checks on staff-only routes.
package auth

import (
	"errors"
	"time"

	"github.com/example/tablepos/pkg/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthID is the credential id the token was issued for.
func (c *Claims) AuthID() string {
	return c.Subject
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for cred and returns it with its expiry.
func (i *Issuer) Issue(cred *models.Credential) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := &Claims{
		Email: cred.Email,
		Role:  cred.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			Issuer:    "tablepos",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
