package reference

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"drafter/internal/config"
	"drafter/internal/services"
)

// Manager encodes, encrypts, and signs opaque model references.
type Manager struct {
	aead       cipher.AEAD
	signingKey []byte
	signedTTL  time.Duration
}

// New constructs a Manager from a 32-byte AES key and a signing key.
func New(encryptionKey, signingKey []byte, signedTTL time.Duration) (*Manager, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	if len(signingKey) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "reference", "new", "signing key is empty", nil)
	}
	if signedTTL <= 0 {
		signedTTL = time.Hour
	}
	key := make([]byte, len(signingKey))
	copy(key, signingKey)
	return &Manager{aead: aead, signingKey: key, signedTTL: signedTTL}, nil
}

// NewFromConfig constructs a Manager from validated application config.
func NewFromConfig(cfg *config.Config) (*Manager, error) {
	return New(
		cfg.EncryptionKeyBytes(),
		[]byte(cfg.Reference.SigningKey),
		time.Duration(cfg.Reference.SignedTTL)*time.Second,
	)
}

// Encode converts a raw resource identifier into an opaque URL-safe token.
func (m *Manager) Encode(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode recovers the raw resource identifier from a token.
func (m *Manager) Decode(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "reference", "decode", "malformed token", err)
	}
	if len(raw) == 0 {
		return "", services.Wrap(services.ErrValidation, "reference", "decode", "empty token", nil)
	}
	return string(raw), nil
}

// Encrypt seals a token for storage at rest. The random nonce is prepended to
// the ciphertext and the result is URL-safe base64.
func (m *Manager) Encrypt(token string) (string, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(token), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (m *Manager) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "reference", "decrypt", "malformed ciphertext", err)
	}
	nonceSize := m.aead.NonceSize()
	if len(sealed) <= nonceSize {
		return "", services.Wrap(services.ErrValidation, "reference", "decrypt", "ciphertext too short", nil)
	}
	plain, err := m.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", services.Wrap(services.ErrUnauthorized, "reference", "decrypt", "authentication failed", nil)
	}
	return string(plain), nil
}

// Sign produces a token variant carrying an expiration, authenticated with
// HMAC-SHA256. A non-positive ttl falls back to the configured default.
func (m *Manager) Sign(token string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = m.signedTTL
	}
	expiry := time.Now().Add(ttl).Unix()
	payload := base64.RawURLEncoding.EncodeToString([]byte(token)) + "." + strconv.FormatInt(expiry, 10)
	return payload + "." + base64.RawURLEncoding.EncodeToString(m.mac(payload))
}

// Verify checks a signed token. It fails closed: any parse failure, signature
// mismatch, or elapsed expiry yields valid == false and an empty token.
func (m *Manager) Verify(signedToken string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(signedToken), ".")
	if len(parts) != 3 {
		return "", false
	}
	payload := parts[0] + "." + parts[1]
	mac, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", false
	}
	if !hmac.Equal(mac, m.mac(payload)) {
		return "", false
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || time.Now().Unix() >= expiry {
		return "", false
	}
	token, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	return string(token), true
}

func (m *Manager) mac(payload string) []byte {
	h := hmac.New(sha256.New, m.signingKey)
	h.Write([]byte(payload))
	return h.Sum(nil)
}
