package auth

import (
	"errors"
	"fmt"
)

// ErrDenied is wrapped by every per-request authorization failure.
var ErrDenied = errors.New("access denied")

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrCredentialExpired = errors.New("credential expired")
)

// ErrNotAdmin is a valid credential that does not carry administrative authority.
var ErrNotAdmin = fmt.Errorf("%w: not an administrator", ErrInvalidCredential)

// ErrMisconfigured means no usable admin credential source is configured. It is startup-fatal.
var ErrMisconfigured = errors.New("admin credentials misconfigured")

// ErrTokensDisabled is returned by Login when no signing key is configured.
var ErrTokensDisabled = errors.New("bearer tokens are not configured")

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

func denied(reason error) error {
	return fmt.Errorf("%w: %w", ErrDenied, reason)
}
