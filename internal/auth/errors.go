package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrUserAlreadyRegistered = errors.New("user already registered")
	ErrWeakPassword          = errors.New("password too short")
	ErrEmailNotConfirmed     = errors.New("email not confirmed")
	ErrSignupDisabled        = errors.New("signup disabled")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrInvalidToken          = errors.New("invalid or expired confirmation token")
	ErrNoSession             = errors.New("no active session")
)

// weakPasswordError carries the length the password fell short of.
type weakPasswordError struct {
	min int
}

func (e *weakPasswordError) Error() string {
	return fmt.Sprintf("password shorter than %d characters", e.min)
}

func (e *weakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// UserMessage returns the message shown to the user for an auth failure.
// Unknown errors get a generic message so internals never leak.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid login credentials"
	case errors.Is(err, ErrUserAlreadyRegistered):
		return "User already registered"
	case errors.Is(err, ErrWeakPassword):
		var weak *weakPasswordError
		if errors.As(err, &weak) {
			return fmt.Sprintf("Password should be at least %d characters", weak.min)
		}
		return "Password is too short"
	case errors.Is(err, ErrEmailNotConfirmed):
		return "Email not confirmed"
	case errors.Is(err, ErrSignupDisabled):
		return "Signup disabled"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid or expired confirmation link"
	case errors.Is(err, ErrNoSession):
		return "Not signed in"
	default:
		return "Authentication failed, please try again"
	}
}
