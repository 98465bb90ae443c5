package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, name, role, is_blocked, is_verified, created_at, updated_at`

const (
	qUserInsert = `
INSERT INTO users (email, password_hash, name, role, is_verified)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserUpdatePassword = `
UPDATE users
SET password_hash = $2,
    updated_at    = NOW()
WHERE email = $1;`

	qUserUpdateName = `
UPDATE users
SET name       = $2,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	qUserSetBlocked = `
UPDATE users
SET is_blocked = $2,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	qUserSetVerified = `
UPDATE users
SET is_verified = $2,
    updated_at  = NOW()
WHERE id = $1;`

	qUserList = `
SELECT ` + userColumns + `
FROM users
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.Identity) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert, u.Email, u.PasswordHash, u.Name, string(u.Role), u.IsVerified)
	if err := scanUser(row, u); err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.Identity
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.Identity
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qUserUpdatePassword, email, hash)
	if err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) (*user.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.Identity
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserUpdateName, id, name), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*user.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.Identity
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserSetBlocked, id, blocked), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qUserSetVerified, id, verified)
	if err != nil {
		return fmt.Errorf("user set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*user.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qUserList, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var out []*user.Identity
	for rows.Next() {
		var u user.Identity
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row, out *user.Identity) error {
	var role string
	if err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &out.Name, &role,
		&out.IsBlocked, &out.IsVerified, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	out.Role = user.Role(role)
	return nil
}
