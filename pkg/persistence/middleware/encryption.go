package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

const sealedKey = "__sealed__"

// ErrNotSealed is returned by Get when the cached entry was stored without encryption.
var ErrNotSealed = errors.New("cached experience is not sealed")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new entries.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when decryption with the active key fails,
	// so keys can be rotated without flushing the cache.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ExperienceCache
	config EncryptionConfig
}

// NewEncryptionMiddleware seals experiences with AES-GCM. The cache only sees
// an envelope carrying the id and name; steps, traits and context are opaque.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return func(next ports.ExperienceCache) ports.ExperienceCache {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Put(ctx context.Context, key string, exp *domain.Experience) error {
	plainText, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experience: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt experience: %w", err)
	}

	envelope := &domain.Experience{
		ID:        exp.ID,
		Name:      exp.Name,
		Published: exp.Published,
		Context: map[string]any{
			sealedKey: base64.StdEncoding.EncodeToString(ciphertext),
		},
	}
	return m.next.Put(ctx, key, envelope)
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) (*domain.Experience, error) {
	envelope, err := m.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Context[sealedKey].(string)
	if !ok {
		return nil, ErrNotSealed
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt experience: %w", err)
	}
	return domain.DecodeExperience(plainText)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
