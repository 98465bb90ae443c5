package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func accessFor(t *testing.T, e *testEnv, role user.Role) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	pair, _, err := e.tokens.IssuePair(domainauth.IdentityClaims{
		UserID: id.String(), Email: "a@x.com", Role: string(role), UserType: role.UserType(),
	})
	require.NoError(t, err)
	return pair.AccessToken, id
}

func serve(h func(http.ResponseWriter, *http.Request, map[string]string), req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req, nil)
	return rec
}

func TestMiddlewareTokenSources(t *testing.T) {
	e := newTestEnv(t)
	mw := NewHTTPMiddleware(e.tokens, nil)
	good, uid := accessFor(t, e, user.RoleJobseeker)

	var seen authctx.Identity
	h := mw.Require(func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		seen, _ = authctx.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer", "Bearer " + good, "", http.StatusNoContent},
		{"lowercase scheme", "bearer " + good, "", http.StatusNoContent},
		{"cookie fallback", "", good, http.StatusNoContent},
		{"foreign scheme falls back to cookie", "Basic Zm9vOmJhcg==", good, http.StatusNoContent},
		{"bearer wins over cookie", "Bearer garbage", good, http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage cookie", "", "garbage", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = authctx.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tc.cookie})
			}
			rec := serve(h, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusNoContent {
				assert.Equal(t, uid, seen.UserID)
				assert.Equal(t, user.RoleJobseeker, seen.Role)
			} else {
				assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
			}
		})
	}
}

func TestMiddlewareRejectsRefreshToken(t *testing.T) {
	e := newTestEnv(t)
	mw := NewHTTPMiddleware(e.tokens, nil)
	pair, _, err := e.tokens.IssuePair(domainauth.IdentityClaims{UserID: uuid.NewString(), Role: "jobseeker", UserType: "user"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := serve(mw.Require(func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		w.WriteHeader(http.StatusOK)
	}), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareIgnoresUserIDHeader(t *testing.T) {
	e := newTestEnv(t)
	mw := NewHTTPMiddleware(e.tokens, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-user-id", uuid.NewString())
	rec := serve(mw.Require(func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		w.WriteHeader(http.StatusOK)
	}), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRequireRole(t *testing.T) {
	e := newTestEnv(t)
	mw := NewHTTPMiddleware(e.tokens, nil)
	h := mw.RequireRole(user.RoleAdmin, func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		w.WriteHeader(http.StatusOK)
	})

	jobseeker, _ := accessFor(t, e, user.RoleJobseeker)
	admin, _ := accessFor(t, e, user.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+jobseeker)
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestUnaryAuthInterceptor(t *testing.T) {
	e := newTestEnv(t)
	good, uid := accessFor(t, e, user.RoleJobseeker)
	icpt := UnaryAuthInterceptor(e.tokens)

	var seen authctx.Identity
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
		seen, _ = authctx.FromContext(ctx)
		return "ok", nil
	}
	private := &grpc.UnaryServerInfo{FullMethod: "/jobportal.v1.UserService/Me"}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+good))
	out, err := icpt(ctx, nil, private, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, uid, seen.UserID)

	seen = authctx.Identity{}
	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("grpcgateway-cookie", "theme=dark; "+AccessCookie+"="+good))
	_, err = icpt(ctx, nil, private, handler)
	require.NoError(t, err)
	assert.Equal(t, uid, seen.UserID)

	_, err = icpt(context.Background(), nil, private, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
	_, err = icpt(ctx, nil, private, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err = icpt(context.Background(), nil, health, handler)
	assert.NoError(t, err)
}
