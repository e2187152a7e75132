package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used by HashAdminKey
const DefaultBcryptCost = 12

// HashAdminKey produces the bcrypt hash stored in auth.admin_key_hash.
func HashAdminKey(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("admin key must not be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost out of range: %d", cost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hash), nil
}

// AdminKeyRequired reports whether admin routes are protected
func (a AuthConfig) AdminKeyRequired() bool {
	return a.AdminKeyHash != ""
}

// VerifyAdminKey compares a presented key with the configured hash.
// It returns true when no hash is configured.
func (a AuthConfig) VerifyAdminKey(key string) bool {
	if !a.AdminKeyRequired() {
		return true
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.AdminKeyHash), []byte(key)) == nil
}
