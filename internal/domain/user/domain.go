package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleJobseeker Role = "jobseeker"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleJobseeker || r == RoleAdmin
}

// UserType is the coarse audience marker carried in token claims.
func (r Role) UserType() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "user"
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleJobseeker, true
	}
	return r, r.Valid()
}

type Identity struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	IsBlocked    bool      `json:"is_blocked"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
