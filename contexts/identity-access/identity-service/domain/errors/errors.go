package errors

import "errors"

// Sentinel domain errors. Validation sentinels name the offending field so
// the transport layer can surface field-scoped messages without inspecting
// request bodies.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email: a user with this email already exists")
	ErrEmailInvalid       = errors.New("email: enter a valid email address")
	ErrUsernameRequired   = errors.New("username: this field is required")
	ErrPasswordTooWeak    = errors.New("password: must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrForbidden          = errors.New("operation not permitted")
	ErrUserProtected      = errors.New("user is referenced as an organization creator and cannot be deactivated")
	ErrInvalidUserInput   = errors.New("invalid user input")
)
