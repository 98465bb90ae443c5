package auth

import (
	"net/http"
	"strings"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"github.com/NordCoder/Jobportal/internal/services/shared/httpx"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type AccessVerifier interface {
	VerifyAccess(token string) (*domainauth.AccessClaims, error)
}

// HTTPMiddleware authenticates from the access token alone; it never
// consults the session store.
type HTTPMiddleware struct {
	verify AccessVerifier
	log    *zap.Logger
}

func NewHTTPMiddleware(v AccessVerifier, log *zap.Logger) *HTTPMiddleware {
	return &HTTPMiddleware{verify: v, log: obs.Component(log, "auth.middleware")}
}

func (m *HTTPMiddleware) Require(next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		id, ok := m.identify(r)
		if !ok {
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "unauthenticated"})
			return
		}
		next(w, r.WithContext(authctx.WithIdentity(r.Context(), id)), params)
	}
}

func (m *HTTPMiddleware) RequireRole(role user.Role, next runtime.HandlerFunc) runtime.HandlerFunc {
	return m.Require(func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		id, _ := authctx.FromContext(r.Context())
		if id.Role != role {
			obs.WithTrace(r.Context(), m.log).Warn("role denied",
				zap.String("user_id", id.UserID.String()), zap.String("need", string(role)))
			httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{Error: domainauth.ErrForbidden.Msg})
			return
		}
		next(w, r, params)
	})
}

func (m *HTTPMiddleware) identify(r *http.Request) (authctx.Identity, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if c, err := r.Cookie(AccessCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return authctx.Identity{}, false
	}
	return identityFromToken(m.verify, token)
}

func identityFromToken(v AccessVerifier, token string) (authctx.Identity, bool) {
	claims, err := v.VerifyAccess(token)
	if err != nil {
		return authctx.Identity{}, false
	}
	id, err := authctx.FromClaims(claims)
	if err != nil {
		return authctx.Identity{}, false
	}
	return id, true
}

// bearerToken returns "" unless the header uses the Bearer scheme, so a
// foreign scheme falls through to the cookie.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
