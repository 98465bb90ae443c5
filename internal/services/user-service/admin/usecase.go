package admin

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrSelfBlock = &domainauth.Error{Kind: domainauth.KindForbidden, Msg: "admins cannot block themselves"}

// ParkedMail lists outbox rows the runner gave up on.
type ParkedMail interface {
	ListFailed(ctx context.Context, limit int) ([]outbox.Message, error)
}

type Usecase struct {
	users    user.Repo
	sessions domainauth.SessionStore
	parked   ParkedMail
	log      *zap.Logger
}

func NewUsecase(users user.Repo, sessions domainauth.SessionStore, parked ParkedMail, log *zap.Logger) *Usecase {
	return &Usecase{users: users, sessions: sessions, parked: parked, log: obs.Component(log, "admin.usecase")}
}

type Page struct {
	Users  []*user.Identity `json:"users"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (u *Usecase) ListUsers(ctx context.Context, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	list, err := u.users.List(ctx, limit, offset)
	if err != nil {
		return nil, domainauth.Infra(domainauth.ErrRepoUnavailable, err)
	}
	out := make([]*user.Identity, 0, len(list))
	for _, id := range list {
		cp := *id
		cp.PasswordHash = ""
		out = append(out, &cp)
	}
	return &Page{Users: out, Limit: limit, Offset: offset}, nil
}

// Block marks the account and revokes every refresh session it holds.
// Access tokens already issued stay valid until they expire.
func (u *Usecase) Block(ctx context.Context, actor, target uuid.UUID) (*user.Identity, error) {
	if actor == target {
		return nil, ErrSelfBlock
	}
	id, err := u.setBlocked(ctx, target, true)
	if err != nil {
		return nil, err
	}
	n, err := u.sessions.DeleteAll(ctx, target.String())
	if err != nil {
		return nil, domainauth.Infra(domainauth.ErrStoreUnavailable, err)
	}
	obs.WithTrace(ctx, u.log).Info("user blocked",
		zap.String("actor", actor.String()), zap.String("user_id", target.String()), zap.Int("sessions_revoked", n))
	return id, nil
}

func (u *Usecase) Unblock(ctx context.Context, actor, target uuid.UUID) (*user.Identity, error) {
	id, err := u.setBlocked(ctx, target, false)
	if err != nil {
		return nil, err
	}
	obs.WithTrace(ctx, u.log).Info("user unblocked", zap.String("actor", actor.String()), zap.String("user_id", target.String()))
	return id, nil
}

func (u *Usecase) setBlocked(ctx context.Context, target uuid.UUID, blocked bool) (*user.Identity, error) {
	id, err := u.users.SetBlocked(ctx, target, blocked)
	switch {
	case errors.Is(err, user.ErrNotFound):
		return nil, domainauth.ErrUserNotFound
	case err != nil:
		return nil, domainauth.Infra(domainauth.ErrRepoUnavailable, err)
	}
	cp := *id
	cp.PasswordHash = ""
	return &cp, nil
}

// Verify marks the account's email as confirmed without an OTP round trip.
func (u *Usecase) Verify(ctx context.Context, actor, target uuid.UUID) (*user.Identity, error) {
	switch err := u.users.SetVerified(ctx, target, true); {
	case errors.Is(err, user.ErrNotFound):
		return nil, domainauth.ErrUserNotFound
	case err != nil:
		return nil, domainauth.Infra(domainauth.ErrRepoUnavailable, err)
	}
	id, err := u.users.GetByID(ctx, target)
	if err != nil {
		return nil, domainauth.Infra(domainauth.ErrRepoUnavailable, err)
	}
	obs.WithTrace(ctx, u.log).Info("user verified by admin", zap.String("actor", actor.String()), zap.String("user_id", target.String()))
	cp := *id
	cp.PasswordHash = ""
	return &cp, nil
}

// ParkedMessage is an outbox row without its payload, which may hold codes.
type ParkedMessage struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *Usecase) ListParkedMail(ctx context.Context, limit int) ([]ParkedMessage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	msgs, err := u.parked.ListFailed(ctx, limit)
	if err != nil {
		return nil, domainauth.Infra(domainauth.ErrRepoUnavailable, err)
	}
	out := make([]ParkedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ParkedMessage{
			Key:       m.IdempotencyKey,
			Kind:      m.Kind.String(),
			Attempts:  m.Attempts,
			LastError: m.LastError,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return out, nil
}
