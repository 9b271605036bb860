package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/benford-lab/internal/catalog"
)

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault("process-secret")
	require.NoError(t, err)

	for _, creds := range []catalog.Credentials{
		{Username: "analyst_1", Key: "0123456789abcdef"},
		{Username: "ünïcode", Key: "k-e-y-12345678"},
		{},
	} {
		token, err := vault.Encrypt(creds)
		require.NoError(t, err)

		got, err := vault.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	}
}

func TestVaultTokensAreRandomised(t *testing.T) {
	vault, err := NewVault("process-secret")
	require.NoError(t, err)
	creds := catalog.Credentials{Username: "analyst", Key: "0123456789"}

	a, _ := vault.Encrypt(creds)
	b, _ := vault.Encrypt(creds)
	assert.NotEqual(t, a, b)
}

func TestVaultDecryptFailures(t *testing.T) {
	vault, err := NewVault("process-secret")
	require.NoError(t, err)
	other, err := NewVault("another-secret")
	require.NoError(t, err)

	token, err := vault.Encrypt(catalog.Credentials{Username: "analyst", Key: "0123456789"})
	require.NoError(t, err)

	nonObject := sealRaw(t, vault, []byte(`["analyst","0123456789"]`))
	garbage := sealRaw(t, vault, []byte(`{"username":`))

	cases := map[string]string{
		"wrong secret":   "",
		"truncated":      token[:len(token)/2],
		"short":          token[:8],
		"not base64":     "!!!not-base64!!!",
		"empty":          "",
		"non-object":     nonObject,
		"malformed json": garbage,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			v := vault
			if name == "wrong secret" {
				v, input = other, token
			}
			_, err := v.Decrypt(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, catalog.ErrAuth), "expected ErrAuth, got %v", err)
		})
	}
}

func TestNewVaultRequiresSecret(t *testing.T) {
	_, err := NewVault("")
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask(""))
	assert.Equal(t, "ab***", Mask("ab"))
	assert.Equal(t, "ana***", Mask("analyst"))
	assert.Equal(t, "ünï***", Mask("ünïcode"))
}

func sealRaw(t *testing.T, v *Vault, payload []byte) string {
	t.Helper()
	nonce := make([]byte, v.aead.NonceSize())
	_, err := io.ReadFull(rand.Reader, nonce)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(v.aead.Seal(nonce, nonce, payload, nil))
}
