package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong passphrase.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrAccountDisabled indicates the account exists but has been deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound indicates no account has the requested ID.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEntryNotFound indicates the owner has no entry with the requested ID.
	ErrEntryNotFound = errors.New("password not found")
	// ErrUnsupportedScheme indicates an entry was sealed with a KDF/cipher
	// pair this service is not configured for.
	ErrUnsupportedScheme = errors.New("unsupported encryption scheme")
)

// ValidationError reports caller input that was rejected before any work
// was done.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
