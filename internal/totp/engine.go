// Package totp is the stateless TOTP engine: secret generation, provisioning
// URI construction, QR rendering, and code verification. It never persists
// anything; secrets come in from the credential store on every call.
package totp

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	totplib "github.com/pquerna/otp/totp"
)

const (
	// RFC 4226 recommends at least 160 bits of shared secret.
	secretLength = 20
	period       = 30
	qrSize       = 200
)

type Engine struct {
	// Issuer is the label shown in authenticator apps.
	Issuer string
	// Skew widens verification to +/- this many time steps. 0 checks only
	// the current step.
	Skew uint
}

// GenerateSecret returns a fresh base32-encoded 160-bit secret from a
// cryptographically secure source.
func (e Engine) GenerateSecret() (string, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generating TOTP secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

// ProvisioningURI builds the standard otpauth:// form consumed by
// authenticator apps. Pure; no storage or network access.
func (e Engine) ProvisioningURI(account, secret string) string {
	query := url.Values{}
	query.Set("secret", secret)
	query.Set("issuer", e.Issuer)
	query.Set("algorithm", "SHA1")
	query.Set("digits", "6")
	query.Set("period", fmt.Sprintf("%d", period))

	label := url.PathEscape(e.Issuer + ":" + account)
	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode())
}

// Verify checks a submitted code against the secret at the given instant.
// The underlying comparison is constant-time.
func (e Engine) Verify(secret, code string, now time.Time) bool {
	valid, err := totplib.ValidateCustom(code, secret, now, totplib.ValidateOpts{
		Period:    period,
		Skew:      e.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// QRCodePNG renders the provisioning URI as a base64-encoded PNG for direct
// embedding in clients.
func (e Engine) QRCodePNG(account, secret string) (string, error) {
	key, err := otp.NewKeyFromURL(e.ProvisioningURI(account, secret))
	if err != nil {
		return "", fmt.Errorf("building provisioning key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("rendering QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
