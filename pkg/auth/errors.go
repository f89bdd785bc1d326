package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrTokenMalformed means the token is not a structurally valid signed token
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid means the signature does not verify against the configured key
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired means the token is well formed and signed but past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrUnauthenticated means no usable credential was presented where one is required
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the credential is valid but the role is insufficient
	ErrForbidden = errors.New("insufficient permissions")

	// ErrInvalidCredentials is returned for any login failure
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrDuplicateIdentity is the parent of the registration conflict errors
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrDuplicateUsername wraps ErrDuplicateIdentity
	ErrDuplicateUsername = &duplicateError{msg: "Username already exists"}
	// ErrDuplicateEmail wraps ErrDuplicateIdentity
	ErrDuplicateEmail = &duplicateError{msg: "Email already exists"}

	// ErrUserNotFound is returned by user stores when no record matches
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for role names other than ADMIN and STUDENT
	ErrInvalidRole = errors.New("invalid role")
	// ErrWeakSigningKey is returned when the signing key is shorter than 256 bits
	ErrWeakSigningKey = errors.New("signing key must be at least 32 bytes")
	// ErrInvalidInput wraps request validation failures; the message is safe to return
	ErrInvalidInput = errors.New("invalid input")
)

type duplicateError struct {
	msg string
}

func (e *duplicateError) Error() string { return e.msg }

func (e *duplicateError) Unwrap() error { return ErrDuplicateIdentity }

// StatusCode maps an error from this package onto an HTTP status code.
// Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
