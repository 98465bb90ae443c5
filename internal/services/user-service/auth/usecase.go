package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	authx "github.com/NordCoder/Jobportal/internal/auth"
	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var authOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_operations_total",
	Help: "Auth operations by name and outcome kind.",
}, []string{"op", "result"})

const maxNameLen = 100

type Config struct {
	SignupOTPTTL      time.Duration
	ResetOTPTTL       time.Duration
	ResetGrantTTL     time.Duration
	VerifiedMarkerTTL time.Duration
	RotateRefresh     bool
	OTPMaxAttempts    int
	LoginMaxAttempts  int
	AttemptWindow     time.Duration
	AllowAdminSignup  bool
}

func (c *Config) withDefaults() {
	if c.SignupOTPTTL <= 0 {
		c.SignupOTPTTL = 5 * time.Minute
	}
	if c.ResetOTPTTL <= 0 {
		c.ResetOTPTTL = 15 * time.Minute
	}
	if c.ResetGrantTTL <= 0 {
		c.ResetGrantTTL = 10 * time.Minute
	}
	if c.VerifiedMarkerTTL <= 0 {
		c.VerifiedMarkerTTL = 30 * time.Minute
	}
	if c.OTPMaxAttempts <= 0 {
		c.OTPMaxAttempts = 5
	}
	if c.LoginMaxAttempts <= 0 {
		c.LoginMaxAttempts = 5
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = 15 * time.Minute
	}
}

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Deps struct {
	Users    user.Repo
	Tokens   *authx.TokenService
	Hasher   *authx.PasswordHasher
	OTP      domainauth.OTPStore
	Sessions domainauth.SessionStore
	Limiter  domainauth.AttemptLimiter
	Mail     domainauth.EmailDispatcher
	Tx       Transactor
	Log      *zap.Logger
}

type Usecase struct {
	users    user.Repo
	tokens   *authx.TokenService
	hasher   *authx.PasswordHasher
	otp      domainauth.OTPStore
	sessions domainauth.SessionStore
	limiter  domainauth.AttemptLimiter
	mail     domainauth.EmailDispatcher
	tx       Transactor
	log      *zap.Logger
	cfg      Config

	// compared against when the email is unknown so both login failures cost the same
	dummyHash string

	newCode  func() (string, error)
	newGrant func() (string, error)
}

func NewUseCase(d Deps, cfg Config) (*Usecase, error) {
	cfg.withDefaults()
	if d.Tx == nil {
		d.Tx = noTx{}
	}
	if d.Hasher == nil {
		d.Hasher = authx.NewPasswordHasher(0)
	}
	dummy, err := d.Hasher.Hash("jobportal-dummy-password")
	if err != nil {
		return nil, err
	}
	return &Usecase{
		users:     d.Users,
		tokens:    d.Tokens,
		hasher:    d.Hasher,
		otp:       d.OTP,
		sessions:  d.Sessions,
		limiter:   d.Limiter,
		mail:      d.Mail,
		tx:        d.Tx,
		log:       obs.Component(d.Log, "auth.usecase"),
		cfg:       cfg,
		dummyHash: dummy,
		newCode:   authx.GenerateOTP,
		newGrant:  func() (string, error) { return authx.GenerateRawToken(32) },
	}, nil
}

type LoginResult struct {
	User   *user.Identity        `json:"user"`
	Tokens domainauth.TokenPair `json:"tokens"`
}

type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Rotated      bool   `json:"rotated"`
}

type Profile struct {
	User           *user.Identity `json:"user"`
	ActiveSessions int            `json:"activeSessions"`
}

func (u *Usecase) Register(ctx context.Context, email, password, name, role string) (_ *user.Identity, err error) {
	defer observe("register", &err)

	email, err = validEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validPassword(password); err != nil {
		return nil, err
	}
	name, err = validName(name)
	if err != nil {
		return nil, err
	}
	r, ok := user.ParseRole(role)
	if !ok || (r == user.RoleAdmin && !u.cfg.AllowAdminSignup) {
		return nil, domainauth.ErrInvalidRole
	}

	switch _, err := u.users.GetByEmail(ctx, email); {
	case err == nil:
		return nil, domainauth.ErrEmailInUse
	case !errors.Is(err, user.ErrNotFound):
		return nil, repoErr(err)
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, domainauth.Infra(domainauth.ErrHashFailed, err)
	}

	verified, err := u.otp.Exists(ctx, domainauth.SignupVerifiedKey(email))
	if err != nil {
		return nil, storeErr(err)
	}

	id := &user.Identity{Email: email, PasswordHash: hash, Name: name, Role: r, IsVerified: verified}
	if err := u.users.Create(ctx, id); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, domainauth.ErrEmailInUse
		}
		return nil, repoErr(err)
	}
	if verified {
		if err := u.otp.Consume(ctx, domainauth.SignupVerifiedKey(email)); err != nil {
			obs.WithTrace(ctx, u.log).Warn("drop verified marker", obs.Email("email", email), zap.Error(err))
		}
	}

	obs.WithTrace(ctx, u.log).Info("user registered",
		zap.String("user_id", id.ID.String()), obs.Email("email", email), zap.Bool("verified", verified))
	return public(id), nil
}

func (u *Usecase) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	defer observe("login", &err)
	log := obs.WithTrace(ctx, u.log)

	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domainauth.ErrInvalidCredentials
	}

	// Keyed per client address when the transport supplies one.
	limitKey := "login:" + email
	if addr, ok := authctx.ClientAddr(ctx); ok {
		limitKey += ":" + addr
	}
	allowed, err := u.limiter.Hit(ctx, limitKey, u.cfg.LoginMaxAttempts, u.cfg.AttemptWindow)
	if err != nil {
		return nil, storeErr(err)
	}
	if !allowed {
		log.Warn("login throttled", obs.Email("email", email))
		return nil, domainauth.ErrTooManyAttempts
	}

	id, err := u.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		_, _ = u.hasher.Compare(u.dummyHash, password)
		log.Info("login failed", obs.Email("email", email), zap.String("reason", "unknown email"))
		return nil, domainauth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, repoErr(err)
	}

	ok, err := u.hasher.Compare(id.PasswordHash, password)
	if err != nil {
		log.Error("stored hash unusable", zap.String("user_id", id.ID.String()), zap.Error(err))
		return nil, domainauth.ErrInvalidCredentials
	}
	if !ok {
		log.Info("login failed", obs.Email("email", email), zap.String("reason", "password mismatch"))
		return nil, domainauth.ErrInvalidCredentials
	}
	if id.IsBlocked {
		log.Info("login failed", obs.Email("email", email), zap.String("reason", "blocked"))
		return nil, domainauth.ErrAccountBlocked
	}

	pair, err := u.startSession(ctx, claimsOf(id))
	if err != nil {
		return nil, err
	}
	if err := u.limiter.Reset(ctx, limitKey); err != nil {
		log.Warn("reset login limiter", zap.Error(err))
	}

	log.Info("user logged in", zap.String("user_id", id.ID.String()))
	return &LoginResult{User: public(id), Tokens: pair}, nil
}

func (u *Usecase) startSession(ctx context.Context, claims domainauth.IdentityClaims) (domainauth.TokenPair, error) {
	pair, rc, err := u.tokens.IssuePair(claims)
	if err != nil {
		return domainauth.TokenPair{}, domainauth.Infra(domainauth.ErrTokenSigning, err)
	}
	if err := u.sessions.Put(ctx, rc.UserID, rc.TokenID, pair.RefreshToken, u.tokens.RefreshTTL()); err != nil {
		return domainauth.TokenPair{}, storeErr(err)
	}
	return pair, nil
}

func (u *Usecase) Refresh(ctx context.Context, refreshToken string) (_ *RefreshResult, err error) {
	defer observe("refresh", &err)

	rc, err := u.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, domainauth.ErrInvalidRefreshToken
	}
	stored, found, err := u.sessions.Get(ctx, rc.UserID, rc.TokenID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !found || !authx.EqualTokens(stored, refreshToken) {
		return nil, domainauth.ErrInvalidRefreshToken
	}

	if !u.cfg.RotateRefresh {
		access, err := u.tokens.ReissueAccess(rc)
		if err != nil {
			return nil, domainauth.Infra(domainauth.ErrTokenSigning, err)
		}
		return &RefreshResult{AccessToken: access, RefreshToken: refreshToken}, nil
	}

	if err := u.sessions.Delete(ctx, rc.UserID, rc.TokenID); err != nil {
		return nil, storeErr(err)
	}
	pair, err := u.startSession(ctx, rc.IdentityClaims)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, Rotated: true}, nil
}

// Logout treats an unverifiable token as an already finished session.
func (u *Usecase) Logout(ctx context.Context, refreshToken string) (err error) {
	defer observe("logout", &err)

	rc, err := u.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if err := u.sessions.Delete(ctx, rc.UserID, rc.TokenID); err != nil {
		return storeErr(err)
	}
	obs.WithTrace(ctx, u.log).Info("user logged out", zap.String("user_id", rc.UserID))
	return nil
}

func (u *Usecase) LogoutAll(ctx context.Context, userID uuid.UUID) (_ int, err error) {
	defer observe("logout_all", &err)

	n, err := u.sessions.DeleteAll(ctx, userID.String())
	if err != nil {
		return 0, storeErr(err)
	}
	obs.WithTrace(ctx, u.log).Info("all sessions revoked", zap.String("user_id", userID.String()), zap.Int("sessions", n))
	return n, nil
}

func (u *Usecase) GenerateOTP(ctx context.Context, email string) (err error) {
	defer observe("generate_otp", &err)

	email, err = validEmail(email)
	if err != nil {
		return err
	}
	if err := u.ensureUnregistered(ctx, email); err != nil {
		return err
	}
	return u.issueSignupOTP(ctx, email)
}

func (u *Usecase) ResendOTP(ctx context.Context, email string) (err error) {
	defer observe("resend_otp", &err)

	email, err = validEmail(email)
	if err != nil {
		return err
	}
	if err := u.ensureUnregistered(ctx, email); err != nil {
		return err
	}
	if err := u.otp.Consume(ctx, domainauth.SignupOTPKey(email)); err != nil {
		return storeErr(err)
	}
	return u.issueSignupOTP(ctx, email)
}

func (u *Usecase) ensureUnregistered(ctx context.Context, email string) error {
	_, err := u.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domainauth.ErrEmailAlreadyRegistered
	case errors.Is(err, user.ErrNotFound):
		return nil
	default:
		return repoErr(err)
	}
}

func (u *Usecase) issueSignupOTP(ctx context.Context, email string) error {
	code, err := u.newCode()
	if err != nil {
		return domainauth.Infra(domainauth.ErrRandomFailed, err)
	}
	if err := u.otp.Store(ctx, domainauth.SignupOTPKey(email), code, u.cfg.SignupOTPTTL); err != nil {
		return storeErr(err)
	}
	if err := u.mail.SendOTP(ctx, email, code); err != nil {
		return dispatchErr(err)
	}
	obs.WithTrace(ctx, u.log).Info("signup otp issued", obs.Email("email", email))
	return nil
}

func (u *Usecase) VerifyOTP(ctx context.Context, email, code string) (err error) {
	defer observe("verify_otp", &err)

	email, err = validEmail(email)
	if err != nil {
		return err
	}
	if !authx.ValidOTPFormat(code) {
		return domainauth.ErrInvalidOTPInput
	}
	if err := u.consumeOTP(ctx, "otp:signup:"+email, domainauth.SignupOTPKey(email), code); err != nil {
		return err
	}
	if err := u.otp.Store(ctx, domainauth.SignupVerifiedKey(email), "1", u.cfg.VerifiedMarkerTTL); err != nil {
		return storeErr(err)
	}
	obs.WithTrace(ctx, u.log).Info("signup otp verified", obs.Email("email", email))
	return nil
}

// consumeOTP is the single verification path: throttle, then atomic
// compare-and-delete.
func (u *Usecase) consumeOTP(ctx context.Context, limitKey, key, code string) error {
	allowed, err := u.limiter.Hit(ctx, limitKey, u.cfg.OTPMaxAttempts, u.cfg.AttemptWindow)
	if err != nil {
		return storeErr(err)
	}
	if !allowed {
		return domainauth.ErrTooManyAttempts
	}

	match, err := u.otp.CompareAndConsume(ctx, key, code)
	if err != nil {
		return storeErr(err)
	}
	switch match {
	case domainauth.OTPNotFound:
		return domainauth.ErrOTPNotFound
	case domainauth.OTPMismatch:
		return domainauth.ErrInvalidOTP
	}

	if err := u.limiter.Reset(ctx, limitKey); err != nil {
		obs.WithTrace(ctx, u.log).Warn("reset otp limiter", zap.Error(err))
	}
	return nil
}

func (u *Usecase) ForgotPassword(ctx context.Context, email string) (err error) {
	defer observe("forgot_password", &err)

	email, err = validEmail(email)
	if err != nil {
		return err
	}
	id, err := u.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := u.newCode()
	if err != nil {
		return domainauth.Infra(domainauth.ErrRandomFailed, err)
	}
	if err := u.otp.Store(ctx, domainauth.PasswordResetOTPKey(email, string(id.Role)), code, u.cfg.ResetOTPTTL); err != nil {
		return storeErr(err)
	}
	if err := u.mail.SendPasswordResetOTP(ctx, email, code); err != nil {
		return dispatchErr(err)
	}
	obs.WithTrace(ctx, u.log).Info("password reset otp issued", zap.String("user_id", id.ID.String()))
	return nil
}

// VerifyPasswordResetOTP consumes the reset code and hands back the grant
// that ResetPassword requires.
func (u *Usecase) VerifyPasswordResetOTP(ctx context.Context, email, code string) (_ string, err error) {
	defer observe("verify_reset_otp", &err)

	email, err = validEmail(email)
	if err != nil {
		return "", err
	}
	if !authx.ValidOTPFormat(code) {
		return "", domainauth.ErrInvalidOTPInput
	}
	id, err := u.lookupByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	role := string(id.Role)
	if err := u.consumeOTP(ctx, "otp:reset:"+email, domainauth.PasswordResetOTPKey(email, role), code); err != nil {
		return "", err
	}

	grant, err := u.newGrant()
	if err != nil {
		return "", domainauth.Infra(domainauth.ErrRandomFailed, err)
	}
	if err := u.otp.Store(ctx, domainauth.PasswordResetGrantKey(email, role), grant, u.cfg.ResetGrantTTL); err != nil {
		return "", storeErr(err)
	}
	return grant, nil
}

func (u *Usecase) ResetPassword(ctx context.Context, email, grant, newPassword string) (err error) {
	defer observe("reset_password", &err)
	log := obs.WithTrace(ctx, u.log)

	email, err = validEmail(email)
	if err != nil {
		return err
	}
	if err := validPassword(newPassword); err != nil {
		return err
	}
	id, err := u.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}
	if grant == "" {
		return domainauth.ErrResetNotAuthorized
	}

	match, err := u.otp.CompareAndConsume(ctx, domainauth.PasswordResetGrantKey(email, string(id.Role)), grant)
	if err != nil {
		return storeErr(err)
	}
	if match != domainauth.OTPMatched {
		log.Warn("password reset without valid grant", zap.String("user_id", id.ID.String()))
		return domainauth.ErrResetNotAuthorized
	}

	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return domainauth.Infra(domainauth.ErrHashFailed, err)
	}

	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		return u.users.UpdatePasswordHash(ctx, email, hash)
	})
	if errors.Is(err, user.ErrNotFound) {
		return domainauth.ErrUserNotFound
	}
	if err != nil {
		return repoErr(err)
	}

	n, revokeErr := u.sessions.DeleteAll(ctx, id.ID.String())

	// The new password is committed; the notice is best effort.
	if err := u.mail.SendPasswordChanged(ctx, email); err != nil {
		log.Warn("password changed notice", zap.String("user_id", id.ID.String()), zap.Error(err))
	}
	if revokeErr != nil {
		log.Error("revoke sessions after reset", zap.String("user_id", id.ID.String()), zap.Error(revokeErr))
		return storeErr(revokeErr)
	}
	log.Info("password reset", zap.String("user_id", id.ID.String()), zap.Int("sessions_revoked", n))
	return nil
}

func (u *Usecase) Me(ctx context.Context, userID uuid.UUID) (_ *Profile, err error) {
	defer observe("me", &err)

	id, err := u.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, domainauth.ErrUserNotFound
		}
		return nil, repoErr(err)
	}
	n, err := u.sessions.Count(ctx, userID.String())
	if err != nil {
		return nil, storeErr(err)
	}
	return &Profile{User: public(id), ActiveSessions: n}, nil
}

func (u *Usecase) UpdateName(ctx context.Context, userID uuid.UUID, name string) (_ *user.Identity, err error) {
	defer observe("update_name", &err)

	name, err = validName(name)
	if err != nil {
		return nil, err
	}
	id, err := u.users.UpdateName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, domainauth.ErrUserNotFound
		}
		return nil, repoErr(err)
	}
	return public(id), nil
}

func (u *Usecase) lookupByEmail(ctx context.Context, email string) (*user.Identity, error) {
	id, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, domainauth.ErrUserNotFound
		}
		return nil, repoErr(err)
	}
	return id, nil
}

func claimsOf(id *user.Identity) domainauth.IdentityClaims {
	return domainauth.IdentityClaims{
		UserID:   id.ID.String(),
		Email:    id.Email,
		Role:     string(id.Role),
		UserType: id.Role.UserType(),
	}
}

func public(id *user.Identity) *user.Identity {
	cp := *id
	cp.PasswordHash = ""
	return &cp
}

func validEmail(raw string) (string, error) {
	email := user.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@')+1:], ".") {
		return "", domainauth.ErrInvalidEmail
	}
	return email, nil
}

func validPassword(pw string) error {
	if len(pw) < authx.MinPasswordLen || len(pw) > authx.MaxPasswordLen {
		return domainauth.ErrWeakPassword
	}
	return nil
}

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "", domainauth.ErrInvalidName
	}
	return name, nil
}

func classified(err error) bool { return domainauth.KindOf(err) != domainauth.KindUnknown }

func storeErr(err error) error {
	if classified(err) {
		return err
	}
	return domainauth.Infra(domainauth.ErrStoreUnavailable, err)
}

func repoErr(err error) error {
	if classified(err) {
		return err
	}
	return domainauth.Infra(domainauth.ErrRepoUnavailable, err)
}

func dispatchErr(err error) error {
	if classified(err) {
		return err
	}
	return domainauth.Infra(domainauth.ErrDispatchFailed, err)
}

func observe(op string, errp *error) {
	result := "ok"
	if *errp != nil {
		result = domainauth.KindOf(*errp).String()
	}
	authOps.WithLabelValues(op, result).Inc()
}
