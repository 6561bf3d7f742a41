// Package token issues and validates the signed session tokens that prove a
// completed authentication. All signing parameters come from an explicit
// Config captured at construction; nothing is read from ambient state at
// issue time.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLength = 32

var ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", minSecretLength)

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Validity time.Duration
}

type Claims struct {
	UserID uuid.UUID `json:"userID"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	validity time.Duration
	now      func() time.Time
}

// NewIssuer fails on a missing or short secret so that a misconfigured
// signing key kills the process at startup, never a request.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	validity := cfg.Validity
	if validity == 0 {
		validity = 3 * time.Hour
	}
	return &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		validity: validity,
		now:      time.Now,
	}, nil
}

// Issue signs a session token for the user. Two tokens issued at the same
// instant for the same user differ only in their jti.
func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.validity)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ID:        uuid.New().String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return i.secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
