package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore implements CredentialStore over a GORM database. TOTP secrets
// are AES-GCM encrypted before they touch the database.
type GormStore struct {
	db             *gorm.DB
	generateSecret func() (string, error)
}

func NewGormStore(db *gorm.DB, generateSecret func() (string, error)) *GormStore {
	return &GormStore{db: db, generateSecret: generateSecret}
}

func (s *GormStore) CreateIdentity(ctx context.Context, email, password string, profile Profile) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error
	if err == nil {
		return nil, ErrDuplicateAccount
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Phone:        profile.Phone,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &user, nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &user, nil
}

func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &user, nil
}

func (s *GormStore) VerifyPassword(user *models.User, password string) bool {
	return utils.CheckPassword(password, user.PasswordHash)
}

func (s *GormStore) UpdatePassword(ctx context.Context, user *models.User, password string) error {
	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password_hash", passwordHash).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, user *models.User, profile Profile) error {
	updates := map[string]interface{}{
		"first_name": profile.FirstName,
		"last_name":  profile.LastName,
		"phone":      profile.Phone,
	}

	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Phone = profile.Phone
	return nil
}

func (s *GormStore) SetMFAEnabled(ctx context.Context, user *models.User, enabled bool) error {
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("mfa_enabled", enabled).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	user.MFAEnabled = enabled
	return nil
}

func (s *GormStore) GetOrCreateTOTPSecret(ctx context.Context, user *models.User) (string, error) {
	if user.TOTPSecret != "" {
		return utils.DecryptOrPlaintext(user.TOTPSecret), nil
	}
	return s.ResetTOTPSecret(ctx, user)
}

func (s *GormStore) ResetTOTPSecret(ctx context.Context, user *models.User) (string, error) {
	secret, err := s.generateSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	encrypted, err := utils.EncryptAESGCM(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("totp_secret", encrypted).Error
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	user.TOTPSecret = encrypted
	return secret, nil
}

// isDuplicateKeyError catches the unique-index race when two registrations
// for the same email pass the existence check concurrently.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
