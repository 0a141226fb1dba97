package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const roleClaim = "role"

// Token is an issued, signed bearer token.
type Token struct {
	Raw       string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenType string    `json:"tokenType"`
}

// Claims is the verified content of a token.
type Claims struct {
	ID        string
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Claims, error)
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock replaces time.Now for issuing and expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// TokenService issues and verifies HS256 signed JWTs. It keeps no state about issued
// tokens, so a token stays valid until it expires.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ Verifier = (*TokenService)(nil)

// NewTokenService creates a token service from cfg. It fails with ErrMisconfigured without a signing key.
func NewTokenService(cfg Config, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: token signing key is empty", ErrMisconfigured)
	}
	s := &TokenService{
		key:    cfg.SigningKey,
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for subject with role, valid for the configured TTL.
func (s *TokenService) Issue(subject, role string) (Token, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)
	tok, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(s.issuer).
		Subject(subject).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		Claim(roleClaim, role).
		Build()
	if err != nil {
		return Token{}, fmt.Errorf("failed to build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Token{Raw: string(signed), ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// Verify checks structure, signature and claims of raw, in that order.
// Failures are reported as ErrTokenMalformed, ErrTokenSignatureInvalid or ErrTokenExpired.
func (s *TokenService) Verify(_ context.Context, raw string) (Claims, error) {
	if _, err := jwt.ParseInsecure([]byte(raw)); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256(), s.key), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenSignatureInvalid, err)
	}
	err = jwt.Validate(tok,
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithIssuer(s.issuer),
		jwt.WithRequiredClaim(roleClaim),
		jwt.WithRequiredClaim("exp"),
	)
	switch {
	case errors.Is(err, jwt.TokenExpiredError()):
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	var claims Claims
	claims.ID, _ = tok.JwtID()
	claims.Subject, _ = tok.Subject()
	claims.IssuedAt, _ = tok.IssuedAt()
	claims.ExpiresAt, _ = tok.Expiration()
	if err := tok.Get(roleClaim, &claims.Role); err != nil {
		return Claims{}, fmt.Errorf("%w: role claim: %w", ErrTokenMalformed, err)
	}
	return claims, nil
}
