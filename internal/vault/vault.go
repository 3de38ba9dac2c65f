// Package vault seals a mapping.Mapping under a password.
//
// The blob layout is salt(16) || nonce(12) || AES-256-GCM(ciphertext||tag).
// The key is derived from the password with PBKDF2-HMAC-SHA256. Every call to
// Encrypt draws a fresh salt and nonce, so the same mapping and password
// never produce the same blob twice.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/pbkdf2"

	"github.com/dativo-io/lethe/internal/mapping"
	letheotel "github.com/dativo-io/lethe/internal/otel"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/vault")

const (
	// SaltSize is the length of the random PBKDF2 salt prefix.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
	// KeySize selects AES-256.
	KeySize = 32
	// Iterations is the PBKDF2 work factor.
	Iterations = 480_000

	tagSize = 16
)

var (
	// ErrAuthentication covers both a wrong password and a tampered or
	// truncated blob. The two cannot be told apart and callers must not try.
	ErrAuthentication = errors.New("wrong password or corrupted data")
	// ErrCorruptData means the blob authenticated but did not hold a mapping.
	ErrCorruptData = errors.New("decrypted payload is not a valid mapping")
	// ErrEmptyPassword rejects an empty password before any key derivation.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// DeriveKey stretches password into a KeySize-byte key.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// Encrypt serializes m and seals it under password.
func Encrypt(ctx context.Context, m *mapping.Mapping, password string) ([]byte, error) {
	_, span := tracer.Start(ctx, "vault.encrypt")
	defer span.End()

	if password == "" {
		return nil, ErrEmptyPassword
	}

	plaintext, err := mapping.Marshal(m)
	if err != nil {
		return nil, err
	}
	defer clear(plaintext)

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := newGCM(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	blob := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)

	span.SetAttributes(attribute.Int("vault.blob_bytes", len(blob)))
	return blob, nil
}

// Decrypt opens blob with password and parses the mapping inside.
func Decrypt(ctx context.Context, blob []byte, password string) (*mapping.Mapping, error) {
	_, span := tracer.Start(ctx, "vault.decrypt")
	defer span.End()

	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(blob) < SaltSize+NonceSize+tagSize {
		span.SetStatus(codes.Error, "blob too short")
		return nil, ErrAuthentication
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	sealed := blob[SaltSize+NonceSize:]

	gcm, err := newGCM(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		return nil, ErrAuthentication
	}
	defer clear(plaintext)

	m, err := mapping.Unmarshal(plaintext)
	if err != nil {
		span.SetStatus(codes.Error, "corrupt payload")
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	return m, nil
}

// SaveFile encrypts m and writes it to path with owner-only permissions.
func SaveFile(ctx context.Context, path string, m *mapping.Mapping, password string) error {
	blob, err := Encrypt(ctx, m, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("writing mapping file: %w", err)
	}
	return nil
}

// LoadFile reads and decrypts the mapping file at path.
func LoadFile(ctx context.Context, path, password string) (*mapping.Mapping, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	return Decrypt(ctx, blob, password)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	defer clear(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
