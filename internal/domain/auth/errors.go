package auth

import (
	"errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindTooManyRequests
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

var (
	ErrWeakPassword     = newErr(KindValidation, "password is too weak")
	ErrInvalidRole      = newErr(KindValidation, "invalid role")
	ErrInvalidEmail     = newErr(KindValidation, "invalid email")
	ErrInvalidOTPInput  = newErr(KindValidation, "otp must be 6 digits")
	ErrInvalidName      = newErr(KindValidation, "name must be 1-100 characters")
	ErrInvalidInput     = newErr(KindValidation, "malformed request")
	ErrPasswordMismatch = newErr(KindValidation, "passwords don't match")

	ErrUserNotFound = newErr(KindNotFound, "user not found")
	ErrOTPNotFound  = newErr(KindNotFound, "no otp found for this email")

	ErrEmailInUse             = newErr(KindConflict, "email already in use")
	ErrEmailAlreadyRegistered = newErr(KindConflict, "email already registered")

	ErrInvalidCredentials  = newErr(KindUnauthorized, "invalid credentials")
	ErrAccountBlocked      = newErr(KindUnauthorized, "account is blocked")
	ErrInvalidRefreshToken = newErr(KindUnauthorized, "invalid refresh token")
	ErrInvalidOTP          = newErr(KindUnauthorized, "invalid otp")
	ErrResetNotAuthorized  = newErr(KindUnauthorized, "password reset not authorized")
	ErrTokenInvalid        = newErr(KindUnauthorized, "invalid token")
	ErrTokenExpired        = newErr(KindUnauthorized, "token expired")

	ErrForbidden = newErr(KindForbidden, "forbidden")

	ErrTooManyAttempts = newErr(KindTooManyRequests, "too many attempts")

	ErrStoreUnavailable = newErr(KindInfrastructure, "key-value store unavailable")
	ErrRepoUnavailable  = newErr(KindInfrastructure, "identity repository unavailable")
	ErrDispatchFailed   = newErr(KindInfrastructure, "email dispatch failed")
	ErrHashFailed       = newErr(KindInfrastructure, "password hashing failed")
	ErrTokenSigning     = newErr(KindInfrastructure, "token signing failed")
	ErrRandomFailed     = newErr(KindInfrastructure, "secure random source failed")
)

type infraError struct {
	sentinel *Error
	cause    error
}

func (e *infraError) Error() string { return e.sentinel.Msg + ": " + e.cause.Error() }

func (e *infraError) Unwrap() []error { return []error{e.sentinel, e.cause} }

// Infra ties a driver error to an infrastructure sentinel so callers can
// match either one with errors.Is.
func Infra(sentinel *Error, cause error) error {
	if cause == nil {
		return nil
	}
	return &infraError{sentinel: sentinel, cause: cause}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the failure came from infrastructure rather than input.
func Retryable(err error) bool {
	return KindOf(err) == KindInfrastructure
}
