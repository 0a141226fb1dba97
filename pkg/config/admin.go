package config

import (
	"fmt"
	"strings"
	"time"
)

// AdminConfig holds the administrative credential sources.
// Secret and Password are aliases for the same plaintext shared secret.
type AdminConfig struct {
	Secret     string `koanf:"secret"`
	Password   string `koanf:"password"`
	SecretHash string `koanf:"secrethash"`
	Email      string `koanf:"email"`
	Precedence string `koanf:"precedence"`
}

// SharedSecret returns the configured plaintext secret, preferring Secret over Password.
func (c *AdminConfig) SharedSecret() string {
	if c.Secret != "" {
		return c.Secret
	}
	return c.Password
}

// String returns a string representation of the admin configuration with secrets masked.
func (c *AdminConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Admin ---\n")
	b.WriteString(fmt.Sprintf("  secret: %s\n", mask(c.SharedSecret())))
	b.WriteString(fmt.Sprintf("  secrethash: %s\n", mask(c.SecretHash)))
	b.WriteString(fmt.Sprintf("  email: %s\n", c.Email))
	b.WriteString(fmt.Sprintf("  precedence: %s\n", c.Precedence))
	return b.String()
}

func (c *AdminConfig) Validate() error {
	if c.Secret != "" && c.Password != "" && c.Secret != c.Password {
		return fmt.Errorf("admin secret and admin password are both set to different values")
	}
	return nil
}

// TokenConfig holds the bearer token settings.
type TokenConfig struct {
	SigningKey string        `koanf:"signingkey"`
	TTL        time.Duration `koanf:"ttl"`
	Issuer     string        `koanf:"issuer"`
}

// String returns a string representation of the token configuration with the key masked.
func (c *TokenConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Token ---\n")
	b.WriteString(fmt.Sprintf("  signingkey: %s\n", mask(c.SigningKey)))
	b.WriteString(fmt.Sprintf("  ttl: %s\n", c.TTL))
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	return b.String()
}

func (c *TokenConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("token ttl must not be negative: %v", c.TTL)
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return "<not configured>"
	}
	return "****"
}
