// Package authctx carries the verified caller identity through a request
// context. Handlers read it instead of re-parsing tokens or trusting headers.
package authctx

import (
	"context"
	"fmt"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/google/uuid"
)

type Identity struct {
	UserID   uuid.UUID
	Email    string
	Role     user.Role
	UserType string
}

func (i Identity) IsAdmin() bool { return i.Role == user.RoleAdmin }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type addrKey struct{}

// WithClientAddr records the network address the request came from.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	if addr == "" {
		return ctx
	}
	return context.WithValue(ctx, addrKey{}, addr)
}

func ClientAddr(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(addrKey{}).(string)
	return addr, ok
}

func FromClaims(c *domainauth.AccessClaims) (Identity, error) {
	uid, err := uuid.Parse(c.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("claims user id: %w", err)
	}
	role, ok := user.ParseRole(c.Role)
	if !ok {
		return Identity{}, fmt.Errorf("claims role %q", c.Role)
	}
	return Identity{UserID: uid, Email: c.Email, Role: role, UserType: c.UserType}, nil
}
