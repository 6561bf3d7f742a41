// Package store is the credential store: the only owner of durable identity
// state. Everything the auth flow needs between requests is re-read from
// here, so handlers stay stateless across the two-step MFA login.
package store

import (
	"context"
	"errors"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrNotFound         = errors.New("identity not found")
	ErrUnavailable      = errors.New("credential store unavailable")
)

type Profile struct {
	FirstName string
	LastName  string
	Phone     *string
}

type CredentialStore interface {
	CreateIdentity(ctx context.Context, email, password string, profile Profile) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	UpdatePassword(ctx context.Context, user *models.User, password string) error
	UpdateProfile(ctx context.Context, user *models.User, profile Profile) error
	SetMFAEnabled(ctx context.Context, user *models.User, enabled bool) error
	// GetOrCreateTOTPSecret returns the user's TOTP secret in cleartext,
	// generating and persisting one on the first call. Idempotent after.
	GetOrCreateTOTPSecret(ctx context.Context, user *models.User) (string, error)
	// ResetTOTPSecret unconditionally replaces the stored secret,
	// invalidating any authenticator enrolled against the old one.
	ResetTOTPSecret(ctx context.Context, user *models.User) (string, error)
}
