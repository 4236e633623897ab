package identity

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput       = "INVALID_INPUT"
	TextCodeInvalidEmail       = "INVALID_EMAIL"
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeNotFound           = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	TextCodeMissingSigningKey  = "MISSING_SIGNING_KEY"
	TextCodeOperationCancelled = "OPERATION_CANCELLED"
)

// ErrInvalidInput is returned for empty or otherwise unusable arguments
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEmail is returned when an email is not a well formed address
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateEmail is returned when an account already uses the email
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrNotFound is the error we return for non found accounts
var ErrNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials covers both unknown emails and wrong secrets on login.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned for malformed, truncated or badly signed tokens
var ErrTokenInvalid = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token carries an elapsed exp claim
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrStoreUnavailable wraps record store I/O and connectivity failures.
// Callers may retry operations that fail with it.
var ErrStoreUnavailable = goerrors.New("record store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrMissingSigningKey is a startup error, the token service cannot run without a key
var ErrMissingSigningKey = goerrors.New("token signing key is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey)

// WrapStoreError marks err as a record store failure while keeping it as the cause.
func WrapStoreError(err error, message string) error {
	if err == nil {
		return nil
	}
	if message == "" {
		message = ErrStoreUnavailable.Message
	}
	return goerrors.Wrap(err, ErrStoreUnavailable.Category, message).
		WithTextCode(ErrStoreUnavailable.TextCode)
}

// IsKind reports whether err is, or wraps, the given sentinel. Wrapped errors
// match on the sentinel text code.
func IsKind(err error, kind *goerrors.Error) bool {
	if err == nil || kind == nil {
		return false
	}

	if errors.Is(err, kind) {
		return true
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode != "" && rich.TextCode == kind.TextCode
	}

	return false
}

// IsNotFound reports whether err is ErrNotFound
func IsNotFound(err error) bool { return IsKind(err, ErrNotFound) }

// IsDuplicateEmail reports whether err is ErrDuplicateEmail
func IsDuplicateEmail(err error) bool { return IsKind(err, ErrDuplicateEmail) }

// IsInvalidCredentials reports whether err is ErrInvalidCredentials
func IsInvalidCredentials(err error) bool { return IsKind(err, ErrInvalidCredentials) }

// IsTokenInvalid reports whether err is ErrTokenInvalid
func IsTokenInvalid(err error) bool { return IsKind(err, ErrTokenInvalid) }

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool { return IsKind(err, ErrTokenExpired) }

// IsStoreUnavailable reports whether err is a record store failure
func IsStoreUnavailable(err error) bool { return IsKind(err, ErrStoreUnavailable) }
