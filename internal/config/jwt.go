package config

import (
	"fmt"
	"time"
)

// minSecretLength is the shortest HS256 secret accepted
const minSecretLength = 16

// JWTConfig holds what is needed to issue and verify candidate session tokens.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// JWT returns the token configuration, or nil when candidate tokens are disabled.
func (a AuthConfig) JWT() (*JWTConfig, error) {
	if a.JWTSecret == "" {
		return nil, nil
	}
	cfg := &JWTConfig{Secret: a.JWTSecret, TTL: a.TokenTTL}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLength)
	}
	if c.TTL < time.Minute {
		return fmt.Errorf("auth.token_ttl must be at least one minute, got: %s", c.TTL)
	}
	return nil
}
