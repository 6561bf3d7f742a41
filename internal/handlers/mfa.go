package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/internal/totp"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/token"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type MFAHandler struct {
	Store  store.CredentialStore
	Issuer *token.Issuer
	TOTP   totp.Engine
}

func NewMFAHandler(credStore store.CredentialStore, issuer *token.Issuer, engine totp.Engine) *MFAHandler {
	return &MFAHandler{Store: credStore, Issuer: issuer, TOTP: engine}
}

type verifyMFARequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify is the second request of the two-step login. It also confirms
// initial enrollment: the first successful code flips the MFA flag on.
// Unknown email, missing secret, and wrong code are indistinguishable to
// the caller.
func (h *MFAHandler) Verify(c *fiber.Ctx) error {
	var req verifyMFARequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and code are required")
	}

	user, err := h.Store.FindByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("mfa_verify_failed_user_not_found", map[string]interface{}{
				"email": req.Email,
				"ip":    c.IP(),
			})
			return utils.Error(c, fiber.StatusUnauthorized, "invalid MFA code")
		}
		return storeError(c, err)
	}

	if user.TOTPSecret == "" {
		logger.WarnWithUser(user.ID.String(), "mfa_verify_failed_no_secret", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid MFA code")
	}

	secret := utils.DecryptOrPlaintext(user.TOTPSecret)
	if !h.TOTP.Verify(secret, req.Code, time.Now()) {
		logger.WarnWithUser(user.ID.String(), "mfa_verify_failed_invalid_code", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid MFA code")
	}

	// Idempotent: already true on every login after enrollment.
	if err := h.Store.SetMFAEnabled(c.Context(), user, true); err != nil {
		return storeError(c, err)
	}

	signed, expiresAt, err := h.Issuer.Issue(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "mfa_verified", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":     signed,
		"expiresAt": expiresAt,
	})
}

// Enroll hands out the TOTP secret and its provisioning material. The MFA
// flag stays off until a code is verified; repeat calls before that return
// the same secret.
func (h *MFAHandler) Enroll(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	// Enabled with a secret means enrollment completed. A bare flag (set
	// through settings before any authenticator was added) still needs an
	// enrollment pass.
	if user.MFAEnabled && user.TOTPSecret != "" {
		return utils.Error(c, fiber.StatusConflict, "MFA is already enabled")
	}

	secret, err := h.Store.GetOrCreateTOTPSecret(c.Context(), user)
	if err != nil {
		return storeError(c, err)
	}

	return h.enrollmentPayload(c, user.Email, secret)
}

// Reset discards the current secret and issues a fresh one. Only valid
// before verification completes; an enabled account keeps its secret.
func (h *MFAHandler) Reset(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if user.MFAEnabled && user.TOTPSecret != "" {
		return utils.Error(c, fiber.StatusConflict, "MFA is already enabled")
	}

	secret, err := h.Store.ResetTOTPSecret(c.Context(), user)
	if err != nil {
		return storeError(c, err)
	}

	logger.InfoWithUser(user.ID.String(), "mfa_secret_reset", nil)

	return h.enrollmentPayload(c, user.Email, secret)
}

func (h *MFAHandler) enrollmentPayload(c *fiber.Ctx, email, secret string) error {
	uri := h.TOTP.ProvisioningURI(email, secret)

	qrCode, err := h.TOTP.QRCodePNG(email, secret)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed rendering QR code")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"secret":       secret,
		"otpauthUri":   uri,
		"qrCodeBase64": qrCode,
	})
}
