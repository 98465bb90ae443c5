package main

import (
	"net/http"
	"strings"

	authx "github.com/NordCoder/Jobportal/internal/auth"
	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Jobportal/internal/repository/redis"
	"github.com/NordCoder/Jobportal/internal/services/user-service/admin"
	"github.com/NordCoder/Jobportal/internal/services/user-service/auth"
	"github.com/NordCoder/Jobportal/internal/services/user-service/mail"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type app struct {
	tokens   *authx.TokenService
	mw       *auth.HTTPMiddleware
	auth     *auth.Server
	admin    *admin.Server
	identity *auth.IdentityGRPC
}

func wiring(cfg *config.Config, db *pg.DB, rdb *redis.Client, logger *zap.Logger) (*app, error) {
	tokens, err := authx.NewTokenService(authx.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}

	users := pg.NewUserRepo(db)
	sessions := redisrepo.NewSessionStore(rdb, "")
	outboxRepo := pg.NewOutboxRepo(db)

	authUC, err := auth.NewUseCase(auth.Deps{
		Users:    users,
		Tokens:   tokens,
		Hasher:   authx.NewPasswordHasher(cfg.Auth.BcryptCost),
		OTP:      redisrepo.NewOTPStore(rdb),
		Sessions: sessions,
		Limiter:  redisrepo.NewAttemptLimiter(rdb, ""),
		Mail:     mail.NewOutboxDispatcher(outboxRepo),
		Tx:       pg.NewTransactor(db, logger),
		Log:      logger,
	}, auth.Config{
		SignupOTPTTL:      cfg.Auth.SignupOTPTTL,
		ResetOTPTTL:       cfg.Auth.ResetOTPTTL,
		ResetGrantTTL:     cfg.Auth.ResetGrantTTL,
		VerifiedMarkerTTL: cfg.Auth.VerifiedMarkerTTL,
		RotateRefresh:     cfg.Auth.RotateRefresh,
		OTPMaxAttempts:    cfg.Auth.OTPMaxAttempts,
		LoginMaxAttempts:  cfg.Auth.LoginMaxAttempts,
		AttemptWindow:     cfg.Auth.AttemptWindow,
		AllowAdminSignup:  cfg.Auth.AllowAdminSignup,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		tokens: tokens,
		mw:     auth.NewHTTPMiddleware(tokens, logger),
		auth: auth.NewServer(authUC, auth.Opts{
			Logger:       logger,
			CookieDomain: cfg.Auth.CookieDomain,
			CookiePath:   cfg.Auth.CookiePath,
			CookieSecure: cfg.Auth.CookieSecure,
			SameSite:     sameSite(cfg.Auth.CookieSameSite),
			AccessTTL:    tokens.AccessTTL(),
			RefreshTTL:   tokens.RefreshTTL(),
		}),
		admin:    admin.NewServer(admin.NewUsecase(users, sessions, outboxRepo, logger), logger),
		identity: auth.NewIdentityGRPC(authUC, logger),
	}, nil
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
