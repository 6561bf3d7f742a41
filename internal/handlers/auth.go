package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/token"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Store  store.CredentialStore
	Issuer *token.Issuer
}

func NewAuthHandler(credStore store.CredentialStore, issuer *token.Issuer) *AuthHandler {
	return &AuthHandler{Store: credStore, Issuer: issuer}
}

type registerRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Phone           *string `json:"phone"`
}

// Register creates an identity. A fresh registration does not imply a
// session, so no token is returned.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.Password != req.ConfirmPassword {
		return utils.Error(c, fiber.StatusBadRequest, "passwords do not match")
	}
	if req.FirstName == "" || req.LastName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "firstName and lastName are required")
	}
	if req.Phone != nil {
		trimmed := strings.TrimSpace(*req.Phone)
		if trimmed == "" {
			req.Phone = nil
		} else {
			req.Phone = &trimmed
		}
	}

	user, err := h.Store.CreateIdentity(c.Context(), req.Email, req.Password, store.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return utils.Error(c, fiber.StatusConflict, "email already registered")
		}
		return storeError(c, err)
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"message": "user registered successfully"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login performs the first step of authentication. The response for an
// unknown email and a wrong password is byte-identical so callers cannot
// probe which addresses are registered.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	user, err := h.Store.FindByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("login_failed_user_not_found", map[string]interface{}{
				"email": req.Email,
				"ip":    c.IP(),
			})
			return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
		}
		return storeError(c, err)
	}

	if !h.Store.VerifyPassword(user, req.Password) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if user.MFAEnabled {
		logger.InfoWithUser(user.ID.String(), "login_mfa_pending", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Success(c, fiber.StatusOK, fiber.Map{"mfaRequired": true})
	}

	signed, expiresAt, err := h.Issuer.Issue(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_login", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":     signed,
		"expiresAt": expiresAt,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateMeRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile := store.Profile{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	}
	if req.FirstName != nil {
		value := strings.TrimSpace(*req.FirstName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "firstName cannot be empty")
		}
		profile.FirstName = value
	}
	if req.LastName != nil {
		value := strings.TrimSpace(*req.LastName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "lastName cannot be empty")
		}
		profile.LastName = value
	}
	if req.Phone != nil {
		trimmed := strings.TrimSpace(*req.Phone)
		if trimmed == "" {
			profile.Phone = nil
		} else {
			profile.Phone = &trimmed
		}
	}

	if err := h.Store.UpdateProfile(c.Context(), user, profile); err != nil {
		return storeError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !h.Store.VerifyPassword(user, req.CurrentPassword) {
		return utils.Error(c, fiber.StatusBadRequest, "current password is incorrect")
	}
	if len(req.NewPassword) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	if err := h.Store.UpdatePassword(c.Context(), user, req.NewPassword); err != nil {
		return storeError(c, err)
	}

	logger.InfoWithUser(user.ID.String(), "password_changed", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

func (h *AuthHandler) GetSettings(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"mfaEnabled": user.MFAEnabled,
	})
}

type updateMFASettingRequest struct {
	MFAEnabled *bool `json:"mfaEnabled"`
}

// UpdateMFASetting toggles the MFA flag directly, without TOTP proof. This
// weaker path coexists with verify-mfa on purpose; the flow expects clients
// to follow enrollment with verification before relying on the flag.
func (h *AuthHandler) UpdateMFASetting(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMFASettingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.MFAEnabled == nil {
		return utils.Error(c, fiber.StatusBadRequest, "mfaEnabled is required")
	}

	if err := h.Store.SetMFAEnabled(c.Context(), user, *req.MFAEnabled); err != nil {
		return storeError(c, err)
	}

	logger.InfoWithUser(user.ID.String(), "mfa_setting_updated", map[string]interface{}{
		"mfa_enabled": *req.MFAEnabled,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "MFA setting updated"})
}
