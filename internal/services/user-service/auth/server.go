package auth

import (
	"errors"
	"net"
	"net/http"
	"time"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"github.com/NordCoder/Jobportal/internal/services/shared/httpx"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

type Server struct {
	uc   *Usecase
	log  *zap.Logger
	opts Opts
}

type Opts struct {
	Logger       *zap.Logger
	CookieDomain string
	CookiePath   string
	CookieSecure bool
	SameSite     http.SameSite
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func NewServer(uc *Usecase, o Opts) *Server {
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return &Server{uc: uc, log: obs.Component(o.Logger, "auth.http"), opts: o}
}

func (s *Server) Register(mux *runtime.ServeMux, mw *HTTPMiddleware) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/auth/register", s.register},
		{http.MethodPost, "/v1/auth/login", s.login},
		{http.MethodPost, "/v1/auth/refresh", s.refresh},
		{http.MethodPost, "/v1/auth/logout", s.logout},
		{http.MethodPost, "/v1/auth/logout-all", mw.Require(s.logoutAll)},
		{http.MethodPost, "/v1/auth/otp", s.generateOTP},
		{http.MethodPost, "/v1/auth/otp/verify", s.verifyOTP},
		{http.MethodPost, "/v1/auth/otp/resend", s.resendOTP},
		{http.MethodPost, "/v1/auth/password/forgot", s.forgotPassword},
		{http.MethodPost, "/v1/auth/password/verify", s.verifyResetOTP},
		{http.MethodPost, "/v1/auth/password/reset", s.resetPassword},
		{http.MethodGet, "/v1/users/me", mw.Require(s.me)},
		{http.MethodPatch, "/v1/users/me", mw.Require(s.updateName)},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.h); err != nil {
			return err
		}
	}
	return nil
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type emailReq struct {
	Email string `json:"email"`
}

type otpReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetReq struct {
	Email           string `json:"email"`
	ResetToken      string `json:"resetToken"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type nameReq struct {
	Name string `json:"name"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, obs.WithTrace(r.Context(), s.log), err)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.uc.Register(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := authctx.WithClientAddr(r.Context(), remoteHost(r))
	res, err := s.uc.Login(ctx, req.Email, req.Password)
	if errors.Is(err, domainauth.ErrAccountBlocked) {
		err = domainauth.ErrInvalidCredentials
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setAccessCookie(w, res.Tokens.AccessToken)
	s.setRefreshCookie(w, res.Tokens.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	raw := s.refreshToken(r, req.RefreshToken)
	res, err := s.uc.Refresh(r.Context(), raw)
	if err != nil {
		if domainauth.KindOf(err) == domainauth.KindUnauthorized {
			s.clearCookies(w)
		}
		s.fail(w, r, err)
		return
	}
	s.setAccessCookie(w, res.AccessToken)
	if res.Rotated {
		s.setRefreshCookie(w, res.RefreshToken)
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.uc.Logout(r.Context(), s.refreshToken(r, req.RefreshToken)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.clearCookies(w)
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "logged out"})
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, _ := authctx.FromContext(r.Context())
	n, err := s.uc.LogoutAll(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.clearCookies(w)
	httpx.WriteJSON(w, http.StatusOK, struct {
		Revoked int `json:"revoked"`
	}{n})
}

func (s *Server) generateOTP(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req emailReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.uc.GenerateOTP(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "otp sent"})
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req emailReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.uc.ResendOTP(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "otp resent"})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req otpReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.uc.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "otp verified"})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req emailReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.uc.ForgotPassword(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "reset code sent"})
}

func (s *Server) verifyResetOTP(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req otpReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	grant, err := s.uc.VerifyPasswordResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		ResetToken string `json:"resetToken"`
	}{grant})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req resetReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		s.fail(w, r, domainauth.ErrPasswordMismatch)
		return
	}
	if err := s.uc.ResetPassword(r.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageBody{Message: "password updated"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, _ := authctx.FromContext(r.Context())
	p, err := s.uc.Me(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateName(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req nameReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, _ := authctx.FromContext(r.Context())
	u, err := s.uc.UpdateName(r.Context(), id.UserID, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// refreshToken prefers an explicit body value over the cookie.
func (s *Server) refreshToken(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) cookie(name, value string, ttl time.Duration, sameSite http.SameSite) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.CookiePath,
		Domain:   s.opts.CookieDomain,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: sameSite,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl).UTC(),
	}
}

func (s *Server) setAccessCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, s.cookie(AccessCookie, raw, s.opts.AccessTTL, http.SameSiteStrictMode))
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, s.cookie(RefreshCookie, raw, s.opts.RefreshTTL, s.opts.SameSite))
}

func (s *Server) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := s.cookie(name, "", 0, s.opts.SameSite)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0).UTC()
		http.SetCookie(w, c)
	}
}
