// Package auth decides whether a request carries administrative authority and issues
// the bearer tokens backing one of the accepted credential kinds.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultSubject = "admin"

// Guard authorizes administrative requests.
type Guard interface {
	Authorize(ctx context.Context, creds Credentials) (AdminIdentity, error)
}

// AdminGuard tries its authenticators in configured precedence order. The first
// authenticator whose credential kind is presented decides; there is no fallback
// to a lower precedence kind.
type AdminGuard struct {
	authenticators []Authenticator
	tokens         *TokenService
	email          string
	logger         *slog.Logger
	decisions      metric.Int64Counter
}

var _ Guard = (*AdminGuard)(nil)

// NewAdminGuard builds the guard for cfg. tokens may be nil when no signing key is configured.
func NewAdminGuard(cfg Config, tokens *TokenService, logger *slog.Logger) (*AdminGuard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	subject := cfg.AdminEmail
	if subject == "" {
		subject = defaultSubject
	}

	var secret, bearer Authenticator
	switch {
	case len(cfg.SecretHash) > 0:
		secret = NewHashedSecretAuthenticator(cfg.SecretHash, subject)
	case cfg.SharedSecret != "":
		secret = NewSharedSecretAuthenticator(cfg.SharedSecret, subject)
	default:
		secret = unconfigured{kind: KindSecret}
	}
	if tokens != nil {
		bearer = NewBearerTokenAuthenticator(tokens, cfg.AdminEmail)
	} else {
		bearer = unconfigured{kind: KindBearer}
	}

	authenticators := make([]Authenticator, 0, len(cfg.Precedence))
	for _, kind := range cfg.Precedence {
		switch kind {
		case KindSecret:
			authenticators = append(authenticators, secret)
		case KindBearer:
			authenticators = append(authenticators, bearer)
		default:
			return nil, fmt.Errorf("%w: unknown credential kind %q", ErrMisconfigured, kind)
		}
	}

	decisions, err := otel.Meter("github.com/abgdnv/gocatalog/internal/auth").Int64Counter(
		"catalog_auth_decisions",
		metric.WithDescription("Authorization decisions by credential kind and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth decisions counter: %w", err)
	}

	return &AdminGuard{
		authenticators: authenticators,
		tokens:         tokens,
		email:          cfg.AdminEmail,
		logger:         logger.With("component", "admin_guard"),
		decisions:      decisions,
	}, nil
}

// NewAdminGuardWith builds a guard from explicit authenticators, tried in the given order.
func NewAdminGuardWith(logger *slog.Logger, authenticators ...Authenticator) *AdminGuard {
	decisions, _ := otel.Meter("github.com/abgdnv/gocatalog/internal/auth").Int64Counter("catalog_auth_decisions")
	return &AdminGuard{
		authenticators: authenticators,
		logger:         logger.With("component", "admin_guard"),
		decisions:      decisions,
	}
}

func (g *AdminGuard) Authorize(ctx context.Context, creds Credentials) (AdminIdentity, error) {
	for _, a := range g.authenticators {
		if !a.Presented(creds) {
			continue
		}
		identity, err := a.Authenticate(ctx, creds)
		g.record(ctx, a.Kind(), err)
		if err != nil {
			g.logger.WarnContext(ctx, "Admin authorization denied", "kind", a.Kind(), "error", err)
			return AdminIdentity{}, err
		}
		return identity, nil
	}
	g.record(ctx, "", ErrMissingCredential)
	return AdminIdentity{}, denied(ErrMissingCredential)
}

// Login exchanges the admin email and secret for a bearer token.
// The email is checked only when an admin email is configured.
func (g *AdminGuard) Login(ctx context.Context, email, password string) (Token, error) {
	if g.tokens == nil {
		return Token{}, ErrTokensDisabled
	}
	if password == "" {
		return Token{}, denied(ErrMissingCredential)
	}
	creds := Credentials{Secret: password}
	var secret Authenticator
	for _, a := range g.authenticators {
		if a.Kind() == KindSecret {
			secret = a
			break
		}
	}
	if secret == nil {
		return Token{}, denied(ErrInvalidCredential)
	}
	identity, err := secret.Authenticate(ctx, creds)
	g.record(ctx, KindSecret, err)
	if err != nil {
		g.logger.WarnContext(ctx, "Admin login denied", "error", err)
		return Token{}, err
	}
	if g.email != "" && !strings.EqualFold(strings.TrimSpace(email), g.email) {
		g.logger.WarnContext(ctx, "Admin login denied", "error", "email mismatch")
		return Token{}, denied(ErrInvalidCredential)
	}

	token, err := g.tokens.Issue(identity.Subject, identity.Role)
	if err != nil {
		return Token{}, fmt.Errorf("failed to issue token: %w", err)
	}
	g.logger.InfoContext(ctx, "Admin token issued", "subject", identity.Subject, "expires_at", token.ExpiresAt)
	return token, nil
}

func (g *AdminGuard) record(ctx context.Context, kind Kind, err error) {
	outcome := "granted"
	switch {
	case errors.Is(err, ErrMissingCredential):
		outcome = "missing"
	case errors.Is(err, ErrCredentialExpired):
		outcome = "expired"
	case err != nil:
		outcome = "invalid"
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
}
