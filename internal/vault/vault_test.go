package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/lethe/internal/mapping"
)

func sample() *mapping.Mapping {
	m := mapping.New()
	m.Persons["Maria Silva"] = "Ana Lima"
	m.TaxIDs["529.982.247-25"] = "111.444.777-35"
	m.DocIDs["12.345.678-X"] = "98.765.432-1"
	m.Dates["15/03/1990"] = "02/07/1975"
	return m
}

// sealRaw encrypts arbitrary bytes in the vault layout.
func sealRaw(t *testing.T, plaintext []byte, password string) []byte {
	t.Helper()
	salt := make([]byte, SaltSize)
	nonce := make([]byte, NonceSize)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	block, err := aes.NewCipher(DeriveKey(password, salt))
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	blob := append(append([]byte{}, salt...), nonce...)
	return gcm.Seal(blob, nonce, plaintext, nil)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := sample()

	blob, err := Encrypt(ctx, m, "s3nha")
	require.NoError(t, err)
	assert.Greater(t, len(blob), SaltSize+NonceSize+tagSize)
	assert.NotContains(t, string(blob), "Maria Silva")

	got, err := Decrypt(ctx, blob, "s3nha")
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
}

func TestEncrypt_FreshSaltAndNonce(t *testing.T) {
	ctx := context.Background()
	a, err := Encrypt(ctx, sample(), "pw")
	require.NoError(t, err)
	b, err := Encrypt(ctx, sample(), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:SaltSize], b[:SaltSize])
}

func TestEncrypt_EmptyMapping(t *testing.T) {
	ctx := context.Background()
	blob, err := Encrypt(ctx, mapping.New(), "pw")
	require.NoError(t, err)
	got, err := Decrypt(ctx, blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestEmptyPassword(t *testing.T) {
	ctx := context.Background()
	_, err := Encrypt(ctx, sample(), "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = Decrypt(ctx, make([]byte, 64), "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestDecrypt_Failures(t *testing.T) {
	ctx := context.Background()
	blob, err := Encrypt(ctx, sample(), "correta")
	require.NoError(t, err)

	tampered := append([]byte{}, blob...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name     string
		blob     []byte
		password string
	}{
		{"wrong password", blob, "errada"},
		{"short blob", blob[:SaltSize+NonceSize], "correta"},
		{"empty blob", nil, "correta"},
		{"tampered tag", tampered, "correta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(ctx, tt.blob, tt.password)
			assert.ErrorIs(t, err, ErrAuthentication)
			assert.Equal(t, "wrong password or corrupted data", err.Error())
		})
	}
}

func TestDecrypt_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	for _, payload := range []string{"not json", `["persons"]`, `{"emails":{}}`, `{"persons":{"a":1}}`} {
		blob := sealRaw(t, []byte(payload), "pw")
		_, err := Decrypt(ctx, blob, "pw")
		assert.ErrorIs(t, err, ErrCorruptData, payload)
		assert.NotErrorIs(t, err, ErrAuthentication, payload)
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveKey("pw", salt)
	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, DeriveKey("pw", salt))
	assert.NotEqual(t, k1, DeriveKey("pw2", salt))
}

func TestSaveLoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc_mapping.lethe")

	require.NoError(t, SaveFile(ctx, path, sample(), "pw"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFile(ctx, path, "pw")
	require.NoError(t, err)
	assert.True(t, sample().Equal(got))

	_, err = LoadFile(ctx, path, "nope")
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = LoadFile(ctx, filepath.Join(t.TempDir(), "missing.lethe"), "pw")
	assert.Error(t, err)
}
