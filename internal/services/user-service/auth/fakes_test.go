package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	authx "github.com/NordCoder/Jobportal/internal/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	redisrepo "github.com/NordCoder/Jobportal/internal/repository/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*user.Identity
	byEmail map[string]uuid.UUID
	fail    error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*user.Identity{}, byEmail: map[string]uuid.UUID{}}
}

func (m *memUsers) Create(_ context.Context, u *user.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return user.ErrEmailTaken
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return user.ErrNotFound
	}
	m.byID[id].PasswordHash = hash
	return nil
}

func (m *memUsers) mutate(id uuid.UUID, f func(*user.Identity)) (*user.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	f(u)
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateName(_ context.Context, id uuid.UUID, name string) (*user.Identity, error) {
	return m.mutate(id, func(u *user.Identity) { u.Name = name })
}

func (m *memUsers) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) (*user.Identity, error) {
	return m.mutate(id, func(u *user.Identity) { u.IsBlocked = blocked })
}

func (m *memUsers) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	_, err := m.mutate(id, func(u *user.Identity) { u.IsVerified = verified })
	return err
}

func (m *memUsers) List(_ context.Context, limit, offset int) ([]*user.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*user.Identity, 0, len(m.byID))
	for _, u := range m.byID {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type sentMail struct {
	kind  string
	email string
	code  string
}

type recordingMail struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (r *recordingMail) record(kind, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, sentMail{kind, email, code})
	return nil
}

func (r *recordingMail) SendOTP(_ context.Context, email, code string) error {
	return r.record("signup", email, code)
}

func (r *recordingMail) SendPasswordResetOTP(_ context.Context, email, code string) error {
	return r.record("reset", email, code)
}

func (r *recordingMail) SendPasswordChanged(_ context.Context, email string) error {
	return r.record("changed", email, "")
}

func (r *recordingMail) last(t *testing.T, kind, email string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].kind == kind && r.sent[i].email == email {
			return r.sent[i].code
		}
	}
	require.FailNow(t, "no mail recorded", "%s to %s", kind, email)
	return ""
}

func (r *recordingMail) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	uc     *Usecase
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *memUsers
	mail   *recordingMail
	clk    *fakeClock
	tokens *authx.TokenService
}

// advance moves both the token clock and the key expiry clock.
func (e *testEnv) advance(d time.Duration) {
	e.clk.Advance(d)
	e.mr.FastForward(d)
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := authx.NewTokenService(authx.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Issuer:        "jobportal",
		Now:           clk.Now,
	})
	require.NoError(t, err)

	var cfg Config
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{mr: mr, rdb: rdb, users: newMemUsers(), mail: &recordingMail{}, clk: clk, tokens: tokens}
	env.uc, err = NewUseCase(Deps{
		Users:    env.users,
		Tokens:   tokens,
		Hasher:   authx.NewPasswordHasher(bcrypt.MinCost),
		OTP:      redisrepo.NewOTPStore(rdb),
		Sessions: redisrepo.NewSessionStore(rdb, ""),
		Limiter:  redisrepo.NewAttemptLimiter(rdb, ""),
		Mail:     env.mail,
	}, cfg)
	require.NoError(t, err)
	return env
}

var errDown = errors.New("connection refused")
