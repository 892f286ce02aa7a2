package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix = "sdl-v1-"

	// keyRandomBytes of entropy, hex encoded to 64 chars.
	keyRandomBytes = 32
)

// ParseAPIKey extracts the random part of an API key.
// Format: sdl-v1-<random_data> with 64 lowercase hex chars (71 chars total).
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (randomData string, err error) {
	randomData, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", ErrInvalidKeyFormat
	}

	if len(randomData) != 2*keyRandomBytes {
		return "", ErrInvalidKeyFormat
	}

	for _, c := range randomData {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", ErrInvalidKeyFormat
		}
	}

	return randomData, nil
}

// ValidateAPIKey reports ErrInvalidKeyFormat for malformed keys.
func ValidateAPIKey(key string) error {
	_, err := ParseAPIKey(key)
	return err
}

// FormatAPIKey constructs an API key from its random part.
func FormatAPIKey(randomData string) string {
	return keyPrefix + randomData
}

// GenerateAPIKey returns a new random API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return FormatAPIKey(hex.EncodeToString(buf)), nil
}

// ComputeHMAC computes HMAC-SHA256 signature of API key using secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC verifies HMAC signature using constant-time comparison.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}
