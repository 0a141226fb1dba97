package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockVerifier is a mock implementation of the Verifier interface.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, raw string) (Claims, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(Claims), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustHash(t *testing.T, secret string) []byte {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func Test_AdminGuard_Authorize(t *testing.T) {
	expiresAt := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	adminClaims := Claims{Subject: "owner@example.com", Role: RoleAdmin, ExpiresAt: expiresAt}

	testCases := []struct {
		name           string
		precedence     []Kind
		withSecret     bool
		withHash       bool
		withEmail      string
		creds          Credentials
		setupMock      func(m *MockVerifier)
		expectErr      []error
		expectIdentity AdminIdentity
	}{
		{
			name:       "No credentials",
			withSecret: true,
			creds:      Credentials{},
			setupMock:  func(m *MockVerifier) {},
			expectErr:  []error{ErrDenied, ErrMissingCredential},
		},
		{
			name:           "Correct plaintext secret",
			withSecret:     true,
			creds:          Credentials{Secret: "s3cret"},
			setupMock:      func(m *MockVerifier) {},
			expectIdentity: AdminIdentity{Subject: "admin", Role: RoleAdmin, Scheme: SchemeSharedSecret},
		},
		{
			name:       "Wrong plaintext secret",
			withSecret: true,
			creds:      Credentials{Secret: "guess"},
			setupMock:  func(m *MockVerifier) {},
			expectErr:  []error{ErrDenied, ErrInvalidCredential},
		},
		{
			name:           "Correct secret checked against hash only",
			withHash:       true,
			withEmail:      "owner@example.com",
			creds:          Credentials{Secret: "s3cret"},
			setupMock:      func(m *MockVerifier) {},
			expectIdentity: AdminIdentity{Subject: "owner@example.com", Role: RoleAdmin, Scheme: SchemeHashedSecret},
		},
		{
			name:       "Hash wins over plaintext",
			withSecret: true,
			withHash:   true,
			creds:      Credentials{Secret: "s3cret"},
			setupMock:  func(m *MockVerifier) {},
			expectIdentity: AdminIdentity{
				Subject: "admin", Role: RoleAdmin, Scheme: SchemeHashedSecret,
			},
		},
		{
			name:      "Valid admin bearer",
			creds:     Credentials{Bearer: "tok"},
			withEmail: "owner@example.com",
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(adminClaims, nil)
			},
			expectIdentity: AdminIdentity{
				Subject: "owner@example.com", Role: RoleAdmin, Scheme: SchemeBearerToken,
				ExpiresAt: func() *int64 { v := expiresAt.Unix(); return &v }(),
			},
		},
		{
			name:  "Expired bearer",
			creds: Credentials{Bearer: "tok"},
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(Claims{}, ErrTokenExpired)
			},
			expectErr: []error{ErrDenied, ErrCredentialExpired},
		},
		{
			name:  "Bad signature",
			creds: Credentials{Bearer: "tok"},
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(Claims{}, ErrTokenSignatureInvalid)
			},
			expectErr: []error{ErrDenied, ErrInvalidCredential, ErrTokenSignatureInvalid},
		},
		{
			name:  "Bearer without admin role",
			creds: Credentials{Bearer: "tok"},
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(Claims{Subject: "owner@example.com", Role: "viewer"}, nil)
			},
			expectErr: []error{ErrDenied, ErrInvalidCredential, ErrNotAdmin},
		},
		{
			name:      "Bearer for another subject when email is pinned",
			creds:     Credentials{Bearer: "tok"},
			withEmail: "owner@example.com",
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(Claims{Subject: "intruder@example.com", Role: RoleAdmin}, nil)
			},
			expectErr: []error{ErrDenied, ErrInvalidCredential, ErrNotAdmin},
		},
		{
			name:       "Secret decides when both are presented",
			withSecret: true,
			creds:      Credentials{Secret: "guess", Bearer: "tok"},
			setupMock:  func(m *MockVerifier) {},
			expectErr:  []error{ErrDenied, ErrInvalidCredential},
		},
		{
			name:       "Bearer decides when configured first",
			precedence: []Kind{KindBearer, KindSecret},
			withSecret: true,
			creds:      Credentials{Secret: "guess", Bearer: "tok"},
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "tok").Return(adminClaims, nil)
			},
			expectIdentity: AdminIdentity{
				Subject: "owner@example.com", Role: RoleAdmin, Scheme: SchemeBearerToken,
				ExpiresAt: func() *int64 { v := expiresAt.Unix(); return &v }(),
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			verifier := new(MockVerifier)
			tc.setupMock(verifier)
			subject := tc.withEmail
			if subject == "" {
				subject = defaultSubject
			}
			var secret Authenticator = unconfigured{kind: KindSecret}
			if tc.withSecret {
				secret = NewSharedSecretAuthenticator("s3cret", subject)
			}
			if tc.withHash {
				secret = NewHashedSecretAuthenticator(mustHash(t, "s3cret"), subject)
			}
			bearer := NewBearerTokenAuthenticator(verifier, tc.withEmail)
			byKind := map[Kind]Authenticator{KindSecret: secret, KindBearer: bearer}
			precedence := tc.precedence
			if precedence == nil {
				precedence = DefaultPrecedence
			}
			var authenticators []Authenticator
			for _, kind := range precedence {
				authenticators = append(authenticators, byKind[kind])
			}
			guard := NewAdminGuardWith(discardLogger(), authenticators...)

			// when
			identity, err := guard.Authorize(context.Background(), tc.creds)

			// then
			if tc.expectErr != nil {
				for _, expected := range tc.expectErr {
					assert.ErrorIs(t, err, expected)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectIdentity, identity)
			}
			verifier.AssertExpectations(t)
		})
	}
}

func Test_NewAdminGuard(t *testing.T) {
	t.Run("Secret presented but only a signing key configured", func(t *testing.T) {
		cfg := Config{SigningKey: testKey, TokenTTL: time.Minute, Issuer: "test", Precedence: DefaultPrecedence}
		tokens, err := NewTokenService(cfg)
		require.NoError(t, err)
		guard, err := NewAdminGuard(cfg, tokens, discardLogger())
		require.NoError(t, err)

		_, err = guard.Authorize(context.Background(), Credentials{Secret: "anything"})

		assert.ErrorIs(t, err, ErrDenied)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("Bearer presented but no signing key configured", func(t *testing.T) {
		cfg := Config{SharedSecret: "s3cret", TokenTTL: time.Minute, Precedence: DefaultPrecedence}
		guard, err := NewAdminGuard(cfg, nil, discardLogger())
		require.NoError(t, err)

		_, err = guard.Authorize(context.Background(), Credentials{Bearer: "tok"})

		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("Nothing configured", func(t *testing.T) {
		_, err := NewAdminGuard(Config{TokenTTL: time.Minute, Precedence: DefaultPrecedence}, nil, discardLogger())
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("Issued token authorizes end to end", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		cfg := Config{SharedSecret: "s3cret", SigningKey: testKey, TokenTTL: time.Minute, Issuer: "test", AdminEmail: "owner@example.com", Precedence: DefaultPrecedence}
		tokens, err := NewTokenService(cfg, WithTokenClock(clock.Now))
		require.NoError(t, err)
		guard, err := NewAdminGuard(cfg, tokens, discardLogger())
		require.NoError(t, err)

		token, err := guard.Login(context.Background(), "Owner@Example.com", "s3cret")
		require.NoError(t, err)
		identity, err := guard.Authorize(context.Background(), Credentials{Bearer: token.Raw})
		require.NoError(t, err)
		assert.Equal(t, "owner@example.com", identity.Subject)
		assert.Equal(t, SchemeBearerToken, identity.Scheme)

		clock.now = clock.now.Add(2 * time.Minute)
		_, err = guard.Authorize(context.Background(), Credentials{Bearer: token.Raw})
		assert.ErrorIs(t, err, ErrCredentialExpired)
	})
}

func Test_AdminGuard_Login(t *testing.T) {
	cfg := Config{SharedSecret: "s3cret", SigningKey: testKey, TokenTTL: time.Minute, Issuer: "test", AdminEmail: "owner@example.com", Precedence: DefaultPrecedence}
	tokens, err := NewTokenService(cfg)
	require.NoError(t, err)
	guard, err := NewAdminGuard(cfg, tokens, discardLogger())
	require.NoError(t, err)

	testCases := []struct {
		name      string
		email     string
		password  string
		expectErr error
	}{
		{name: "Success", email: "owner@example.com", password: "s3cret"},
		{name: "Wrong password", email: "owner@example.com", password: "nope", expectErr: ErrInvalidCredential},
		{name: "Wrong email", email: "other@example.com", password: "s3cret", expectErr: ErrInvalidCredential},
		{name: "Missing password", email: "owner@example.com", expectErr: ErrMissingCredential},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := guard.Login(context.Background(), tc.email, tc.password)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				assert.ErrorIs(t, err, ErrDenied)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token.Raw)
		})
	}

	t.Run("Tokens disabled", func(t *testing.T) {
		noTokens, err := NewAdminGuard(Config{SharedSecret: "s3cret", TokenTTL: time.Minute, Precedence: DefaultPrecedence}, nil, discardLogger())
		require.NoError(t, err)
		_, err = noTokens.Login(context.Background(), "", "s3cret")
		assert.ErrorIs(t, err, ErrTokensDisabled)
	})
}
