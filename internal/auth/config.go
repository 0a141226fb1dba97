package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/gocatalog/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

// Kind names a credential a request can present.
type Kind string

const (
	KindSecret Kind = "secret"
	KindBearer Kind = "bearer"
)

// DefaultPrecedence checks a presented secret before a presented bearer token.
var DefaultPrecedence = []Kind{KindSecret, KindBearer}

const (
	// DefaultTokenTTL is the lifetime of issued tokens when none is configured.
	DefaultTokenTTL = 15 * time.Minute
	DefaultIssuer   = "gocatalog"
	// RoleAdmin is the role granted to administrative identities.
	RoleAdmin = "admin"
)

// Config is the resolved admin credential configuration, built once at startup
// and passed to the guard and the token service.
type Config struct {
	SharedSecret string
	SecretHash   []byte
	SigningKey   []byte
	AdminEmail   string
	TokenTTL     time.Duration
	Issuer       string
	Precedence   []Kind
}

// NewConfig resolves admin and token settings into a Config and validates it.
func NewConfig(admin config.AdminConfig, token config.TokenConfig) (Config, error) {
	precedence, err := ParsePrecedence(admin.Precedence)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		SharedSecret: admin.SharedSecret(),
		AdminEmail:   strings.TrimSpace(admin.Email),
		TokenTTL:     token.TTL,
		Issuer:       token.Issuer,
		Precedence:   precedence,
	}
	if admin.SecretHash != "" {
		cfg.SecretHash = []byte(admin.SecretHash)
	}
	if token.SigningKey != "" {
		cfg.SigningKey = []byte(token.SigningKey)
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails with ErrMisconfigured unless at least one usable credential source is configured.
func (c Config) Validate() error {
	if c.SharedSecret == "" && len(c.SecretHash) == 0 && len(c.SigningKey) == 0 {
		return fmt.Errorf("%w: configure a shared secret, a secret hash or a token signing key", ErrMisconfigured)
	}
	if len(c.SecretHash) > 0 {
		if _, err := bcrypt.Cost(c.SecretHash); err != nil {
			return fmt.Errorf("%w: secret hash is not a bcrypt hash: %w", ErrMisconfigured, err)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrMisconfigured)
	}
	if len(c.Precedence) == 0 {
		return fmt.Errorf("%w: empty credential precedence", ErrMisconfigured)
	}
	return nil
}

// ParsePrecedence parses a comma separated list of credential kinds, e.g. "bearer,secret".
// An empty value yields DefaultPrecedence. Kinds left out are appended in default order.
func ParsePrecedence(s string) ([]Kind, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultPrecedence, nil
	}
	seen := make(map[Kind]bool, len(DefaultPrecedence))
	order := make([]Kind, 0, len(DefaultPrecedence))
	for _, part := range strings.Split(s, ",") {
		kind := Kind(strings.ToLower(strings.TrimSpace(part)))
		switch kind {
		case KindSecret, KindBearer:
		default:
			return nil, fmt.Errorf("%w: unknown credential kind %q in precedence", ErrMisconfigured, part)
		}
		if seen[kind] {
			return nil, fmt.Errorf("%w: credential kind %q listed twice in precedence", ErrMisconfigured, kind)
		}
		seen[kind] = true
		order = append(order, kind)
	}
	for _, kind := range DefaultPrecedence {
		if !seen[kind] {
			order = append(order, kind)
		}
	}
	return order, nil
}
