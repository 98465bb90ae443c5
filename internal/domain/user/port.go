package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("identity not found")
	ErrEmailTaken = errors.New("email already taken")
)

type Repo interface {
	Create(ctx context.Context, u *Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, email, hash string) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*Identity, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Identity, error)
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	List(ctx context.Context, limit, offset int) ([]*Identity, error)
}
