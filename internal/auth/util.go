package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

const OTPLength = 6

var otpUpperBound = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly distributed 6-digit code, leading zeros kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", fmt.Errorf("otp rand: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

func ValidOTPFormat(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func GenerateRawToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func EqualTokens(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
