package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// IdentityClaims is the identity bundle embedded in both token kinds.
type IdentityClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	UserType string `json:"userType"`
}

type AccessClaims struct {
	IdentityClaims
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	IdentityClaims
	TokenID string `json:"tokenId"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type OTPPurpose string

const (
	PurposeSignup        OTPPurpose = "signup"
	PurposePasswordReset OTPPurpose = "password_reset"
)

type OTPMatch int

const (
	OTPNotFound OTPMatch = iota
	OTPMismatch
	OTPMatched
)

// SignupOTPKey and PasswordResetOTPKey keep the two code namespaces apart.
func SignupOTPKey(email string) string { return "otp:" + email }

func PasswordResetOTPKey(email, role string) string {
	return "password_reset:" + email + ":" + role
}

func PasswordResetGrantKey(email, role string) string {
	return "password_reset_grant:" + email + ":" + role
}

func SignupVerifiedKey(email string) string { return "otp_verified:" + email }
