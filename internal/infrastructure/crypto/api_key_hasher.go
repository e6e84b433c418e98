// Package crypto provides API key credential generation and verification.
// Secrets are hashed with HMAC-SHA256 under an application-wide secret and
// compared in constant time; the plaintext secret never survives issuance.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/turtacn/devportal/pkg/constants"
)

// APIKeyHasher generates and verifies API key credentials.
type APIKeyHasher struct {
	appSecret []byte
}

// NewAPIKeyHasher creates a hasher keyed by the application secret.
func NewAPIKeyHasher(appSecret string) (*APIKeyHasher, error) {
	if appSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	return &APIKeyHasher{appSecret: []byte(appSecret)}, nil
}

// GenerateKeyPair creates a fresh credential set: the public key identifier,
// the secret (returned to the caller exactly once), and the stored hash.
func (h *APIKeyHasher) GenerateKeyPair() (keyID, secretKey, keyHash string, err error) {
	keyID, err = randomToken(constants.KeyIDPrefix, constants.KeyIDRandomBytes)
	if err != nil {
		return "", "", "", err
	}
	secretKey, err = randomToken(constants.SecretKeyPrefix, constants.SecretKeyRandomBytes)
	if err != nil {
		return "", "", "", err
	}
	return keyID, secretKey, h.HashSecret(secretKey), nil
}

// HashSecret returns the hex HMAC-SHA256 digest of the secret.
func (h *APIKeyHasher) HashSecret(secret string) string {
	mac := hmac.New(sha256.New, h.appSecret)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecret recomputes the HMAC and compares it to the stored hash in
// constant time, closing the timing side-channel on hash equality.
func (h *APIKeyHasher) VerifySecret(secret, storedHash string) bool {
	expected, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.appSecret)
	mac.Write([]byte(secret))
	return hmac.Equal(mac.Sum(nil), expected)
}

// HasSecretPrefix reports whether the candidate looks like an API secret.
// A cheap shape check before any hashing work.
func HasSecretPrefix(candidate string) bool {
	return strings.HasPrefix(candidate, constants.SecretKeyPrefix)
}

func randomToken(prefix string, bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
