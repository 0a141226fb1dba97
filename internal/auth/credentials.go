package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme identifies how an identity was established.
type Scheme string

const (
	SchemeSharedSecret Scheme = "shared_secret"
	SchemeHashedSecret Scheme = "hashed_secret"
	SchemeBearerToken  Scheme = "bearer_token"
)

// Credentials is what a request presents. Empty fields are not presented.
type Credentials struct {
	Secret string
	Bearer string
}

// IsEmpty reports whether no credential is presented.
func (c Credentials) IsEmpty() bool {
	return c.Secret == "" && c.Bearer == ""
}

// AdminIdentity is the outcome of a successful authorization.
type AdminIdentity struct {
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	Scheme    Scheme `json:"scheme"`
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
}

// Authenticator verifies one kind of presented credential.
type Authenticator interface {
	// Kind is the credential kind this authenticator handles.
	Kind() Kind
	// Presented reports whether creds carry a credential of this kind.
	Presented(creds Credentials) bool
	// Authenticate verifies the presented credential. Failures wrap ErrDenied.
	Authenticate(ctx context.Context, creds Credentials) (AdminIdentity, error)
}

type secretPresence struct{}

func (secretPresence) Kind() Kind { return KindSecret }

func (secretPresence) Presented(creds Credentials) bool { return creds.Secret != "" }

// SharedSecretAuthenticator compares the presented secret with a plaintext secret in constant time.
type SharedSecretAuthenticator struct {
	secretPresence
	secret  []byte
	subject string
}

func NewSharedSecretAuthenticator(secret, subject string) *SharedSecretAuthenticator {
	return &SharedSecretAuthenticator{secret: []byte(secret), subject: subject}
}

func (a *SharedSecretAuthenticator) Authenticate(_ context.Context, creds Credentials) (AdminIdentity, error) {
	if subtle.ConstantTimeCompare([]byte(creds.Secret), a.secret) != 1 {
		return AdminIdentity{}, denied(ErrInvalidCredential)
	}
	return AdminIdentity{Subject: a.subject, Role: RoleAdmin, Scheme: SchemeSharedSecret}, nil
}

// HashedSecretAuthenticator compares the presented secret with a bcrypt hash.
type HashedSecretAuthenticator struct {
	secretPresence
	hash    []byte
	subject string
}

func NewHashedSecretAuthenticator(hash []byte, subject string) *HashedSecretAuthenticator {
	return &HashedSecretAuthenticator{hash: hash, subject: subject}
}

func (a *HashedSecretAuthenticator) Authenticate(_ context.Context, creds Credentials) (AdminIdentity, error) {
	err := bcrypt.CompareHashAndPassword(a.hash, []byte(creds.Secret))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return AdminIdentity{}, denied(ErrInvalidCredential)
	case err != nil:
		return AdminIdentity{}, denied(fmt.Errorf("%w: %w", ErrInvalidCredential, err))
	}
	return AdminIdentity{Subject: a.subject, Role: RoleAdmin, Scheme: SchemeHashedSecret}, nil
}

// BearerTokenAuthenticator accepts tokens carrying the admin role. When email is set the
// token subject must match it as well.
type BearerTokenAuthenticator struct {
	tokens Verifier
	email  string
}

func NewBearerTokenAuthenticator(tokens Verifier, email string) *BearerTokenAuthenticator {
	return &BearerTokenAuthenticator{tokens: tokens, email: email}
}

func (a *BearerTokenAuthenticator) Kind() Kind { return KindBearer }

func (a *BearerTokenAuthenticator) Presented(creds Credentials) bool { return creds.Bearer != "" }

func (a *BearerTokenAuthenticator) Authenticate(ctx context.Context, creds Credentials) (AdminIdentity, error) {
	claims, err := a.tokens.Verify(ctx, creds.Bearer)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return AdminIdentity{}, denied(ErrCredentialExpired)
	case err != nil:
		return AdminIdentity{}, denied(fmt.Errorf("%w: %w", ErrInvalidCredential, err))
	}
	if claims.Role != RoleAdmin {
		return AdminIdentity{}, denied(fmt.Errorf("%w: role %q", ErrNotAdmin, claims.Role))
	}
	if a.email != "" && !strings.EqualFold(claims.Subject, a.email) {
		return AdminIdentity{}, denied(fmt.Errorf("%w: subject %q", ErrNotAdmin, claims.Subject))
	}
	exp := claims.ExpiresAt.Unix()
	return AdminIdentity{Subject: claims.Subject, Role: claims.Role, Scheme: SchemeBearerToken, ExpiresAt: &exp}, nil
}

// unconfigured rejects a presented credential of a kind no verifier is configured for.
type unconfigured struct {
	kind Kind
}

func (u unconfigured) Kind() Kind { return u.kind }

func (u unconfigured) Presented(creds Credentials) bool {
	if u.kind == KindSecret {
		return creds.Secret != ""
	}
	return creds.Bearer != ""
}

func (u unconfigured) Authenticate(context.Context, Credentials) (AdminIdentity, error) {
	return AdminIdentity{}, denied(fmt.Errorf("%w: %s credentials are not accepted", ErrInvalidCredential, u.kind))
}
