package auth

import (
	"errors"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

// TokenService signs and verifies the access/refresh pair. It holds no
// mutable state and is safe for concurrent use.
type TokenService struct {
	cfg TokenConfig
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenService{cfg: cfg}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssuePair returns a fresh pair; the tokenId lives only in the refresh token.
func (s *TokenService) IssuePair(id domainauth.IdentityClaims) (domainauth.TokenPair, *domainauth.RefreshClaims, error) {
	access, err := s.signAccess(id)
	if err != nil {
		return domainauth.TokenPair{}, nil, err
	}

	now := s.cfg.Now()
	rc := &domainauth.RefreshClaims{
		IdentityClaims:   id,
		TokenID:          uuid.NewString(),
		Type:             domainauth.TokenTypeRefresh,
		RegisteredClaims: s.registered(id.UserID, now, s.cfg.RefreshTTL),
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rc).SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return domainauth.TokenPair{}, nil, fmt.Errorf("sign refresh: %w", err)
	}
	return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh}, rc, nil
}

func (s *TokenService) VerifyAccess(token string) (*domainauth.AccessClaims, error) {
	var c domainauth.AccessClaims
	if err := s.parse(token, &c, s.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if c.Type != domainauth.TokenTypeAccess || c.UserID == "" {
		return nil, domainauth.ErrTokenInvalid
	}
	return &c, nil
}

func (s *TokenService) VerifyRefresh(token string) (*domainauth.RefreshClaims, error) {
	var c domainauth.RefreshClaims
	if err := s.parse(token, &c, s.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if c.Type != domainauth.TokenTypeRefresh || c.UserID == "" || c.TokenID == "" {
		return nil, domainauth.ErrTokenInvalid
	}
	return &c, nil
}

// ReissueAccess mints an access token from already verified refresh claims.
func (s *TokenService) ReissueAccess(rc *domainauth.RefreshClaims) (string, error) {
	return s.signAccess(rc.IdentityClaims)
}

func (s *TokenService) signAccess(id domainauth.IdentityClaims) (string, error) {
	c := &domainauth.AccessClaims{
		IdentityClaims:   id,
		Type:             domainauth.TokenTypeAccess,
		RegisteredClaims: s.registered(id.UserID, s.cfg.Now(), s.cfg.AccessTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access: %w", err)
	}
	return signed, nil
}

func (s *TokenService) registered(sub string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return domainauth.ErrTokenInvalid
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.cfg.Now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil }, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return domainauth.ErrTokenExpired
	default:
		return domainauth.ErrTokenInvalid
	}
}
