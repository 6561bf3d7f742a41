package utils

import "testing"

func TestConfigureEncryption(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		wantKeySet bool
	}{
		{
			name:       "empty secret does not set key",
			secret:     "",
			wantKeySet: false,
		},
		{
			name:       "valid secret sets key",
			secret:     "test-secret-key-32-bytes-long!!",
			wantKeySet: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encryptionKey = nil
			ConfigureEncryption(tt.secret)

			if tt.wantKeySet && encryptionKey == nil {
				t.Error("expected encryption key to be set")
			}
			if !tt.wantKeySet && encryptionKey != nil {
				t.Error("expected encryption key to not be set")
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ConfigureEncryption("test-encryption-secret-32-bytes-long!!")

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "base32 TOTP secret",
			content: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "binary-like",
			content: string([]byte{0, 1, 2, 255, 128, 64, 32, 16}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptAESGCM(tt.content)
			if err != nil {
				t.Fatalf("EncryptAESGCM() error = %v", err)
			}
			if encrypted == tt.content && tt.content != "" {
				t.Fatal("expected ciphertext to differ from plaintext")
			}

			decrypted, err := DecryptAESGCM(encrypted)
			if err != nil {
				t.Fatalf("DecryptAESGCM() error = %v", err)
			}
			if decrypted != tt.content {
				t.Errorf("round trip failed: got %q, want %q", decrypted, tt.content)
			}
		})
	}
}

func TestDecryptAESGCM(t *testing.T) {
	ConfigureEncryption("test-encryption-secret-32-bytes-long!!")

	ciphertext, err := EncryptAESGCM("hello world")
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	tests := []struct {
		name       string
		ciphertext string
		setupKey   string
		wantErr    bool
		wantPlain  string
	}{
		{
			name:       "valid ciphertext decrypts correctly",
			ciphertext: ciphertext,
			setupKey:   "test-encryption-secret-32-bytes-long!!",
			wantPlain:  "hello world",
		},
		{
			name:       "invalid base64 returns error",
			ciphertext: "not-valid-base64!!!",
			setupKey:   "test-encryption-secret-32-bytes-long!!",
			wantErr:    true,
		},
		{
			name:       "ciphertext shorter than nonce returns error",
			ciphertext: "YWJj",
			setupKey:   "test-encryption-secret-32-bytes-long!!",
			wantErr:    true,
		},
		{
			name:       "wrong key produces error",
			ciphertext: ciphertext,
			setupKey:   "different-key-32-bytes-long!!!",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ConfigureEncryption(tt.setupKey)
			plaintext, err := DecryptAESGCM(tt.ciphertext)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecryptAESGCM() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && plaintext != tt.wantPlain {
				t.Errorf("DecryptAESGCM() = %q, want %q", plaintext, tt.wantPlain)
			}
		})
	}
}

func TestDecryptOrPlaintext(t *testing.T) {
	ConfigureEncryption("test-encryption-secret-32-bytes-long!!")

	encrypted, err := EncryptAESGCM("secret")
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	tests := []struct {
		name       string
		value      string
		wantReturn string
	}{
		{
			name:       "empty string returns empty",
			value:      "",
			wantReturn: "",
		},
		{
			name:       "encrypted value decrypts",
			value:      encrypted,
			wantReturn: "secret",
		},
		{
			name:       "plaintext value returns as-is",
			value:      "plaintext",
			wantReturn: "plaintext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecryptOrPlaintext(tt.value)
			if result != tt.wantReturn {
				t.Errorf("DecryptOrPlaintext() = %q, want %q", result, tt.wantReturn)
			}
		})
	}
}
