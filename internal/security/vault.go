package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/miradorstack/benford-lab/internal/catalog"
)

const vaultInfo = "benford-lab catalog credentials"

// Vault seals catalog credentials with a key derived from the process secret.
// Token expiry is tracked by the caller, not inside the ciphertext.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives an AES-256-GCM key from secret with HKDF-SHA256.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault secret is required")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(vaultInfo)), key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt serialises creds and returns a URL-safe token (nonce || ciphertext).
func (v *Vault) Encrypt(creds catalog.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Every failure wraps catalog.ErrAuth.
func (v *Vault) Decrypt(token string) (catalog.Credentials, error) {
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return catalog.Credentials{}, fmt.Errorf("%w: malformed credentials", catalog.ErrAuth)
	}
	ns := v.aead.NonceSize()
	if len(blob) < ns+v.aead.Overhead() {
		return catalog.Credentials{}, fmt.Errorf("%w: invalid or expired credentials", catalog.ErrAuth)
	}
	payload, err := v.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return catalog.Credentials{}, fmt.Errorf("%w: invalid or expired credentials", catalog.ErrAuth)
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return catalog.Credentials{}, fmt.Errorf("%w: invalid credential payload", catalog.ErrAuth)
	}
	var creds catalog.Credentials
	if err := json.Unmarshal(trimmed, &creds); err != nil {
		return catalog.Credentials{}, fmt.Errorf("%w: malformed credentials", catalog.ErrAuth)
	}
	return creds, nil
}

// Mask keeps the first three characters of value for log lines.
func Mask(value string) string {
	if value == "" {
		return "***"
	}
	runes := []rune(value)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes) + "***"
}
