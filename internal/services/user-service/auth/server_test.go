package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/Jobportal/internal/services/shared/httpx"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpEnv struct {
	*testEnv
	srv *httptest.Server
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()
	env := newTestEnv(t)
	mux := runtime.NewServeMux()
	s := NewServer(env.uc, Opts{AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour})
	require.NoError(t, s.Register(mux, NewHTTPMiddleware(env.tokens, nil)))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &httpEnv{testEnv: env, srv: ts}
}

type call struct {
	body    any
	bearer  string
	cookies []*http.Cookie
}

func (e *httpEnv) do(t *testing.T, method, path string, c call) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *httpEnv) signup(t *testing.T, email string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/v1/auth/register", call{body: map[string]string{
		"email": email, "password": "secret1", "name": "Ann",
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHTTPLoginSetsCookiesAndAuthenticates(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")

	resp := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := cookieNamed(resp, AccessCookie)
	refresh := cookieNamed(resp, RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	body := decode[LoginResult](t, resp)
	assert.Equal(t, access.Value, body.Tokens.AccessToken)

	me := e.do(t, http.MethodGet, "/v1/users/me", call{cookies: []*http.Cookie{access}})
	require.Equal(t, http.StatusOK, me.StatusCode)
	p := decode[Profile](t, me)
	assert.Equal(t, "a@x.com", p.User.Email)
	assert.Equal(t, 1, p.ActiveSessions)

	me = e.do(t, http.MethodGet, "/v1/users/me", call{bearer: body.Tokens.AccessToken})
	assert.Equal(t, http.StatusOK, me.StatusCode)

	me = e.do(t, http.MethodGet, "/v1/users/me", call{})
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)
	assert.Equal(t, "unauthenticated", decode[httpx.ErrorBody](t, me).Error)
}

func TestHTTPBlockedLoginLooksLikeBadPassword(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")
	u, err := e.users.GetByEmail(t.Context(), "a@x.com")
	require.NoError(t, err)
	_, err = e.users.SetBlocked(t.Context(), u.ID, true)
	require.NoError(t, err)

	blocked := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret1"}})
	wrong := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "b@x.com", "password": "secret1"}})

	assert.Equal(t, http.StatusUnauthorized, blocked.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, decode[httpx.ErrorBody](t, wrong), decode[httpx.ErrorBody](t, blocked))
}

func TestHTTPRefreshAndLogoutViaCookie(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")
	login := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret1"}})
	refresh := cookieNamed(login, RefreshCookie)
	require.NotNil(t, refresh)

	resp := e.do(t, http.MethodPost, "/v1/auth/refresh", call{cookies: []*http.Cookie{refresh}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, cookieNamed(resp, AccessCookie))
	assert.Nil(t, cookieNamed(resp, RefreshCookie), "refresh token is not rotated by default")

	resp = e.do(t, http.MethodPost, "/v1/auth/logout", call{cookies: []*http.Cookie{refresh}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := cookieNamed(resp, RefreshCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	resp = e.do(t, http.MethodPost, "/v1/auth/refresh", call{body: map[string]string{"refreshToken": refresh.Value}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPLogoutAllRequiresAuth(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")

	resp := e.do(t, http.MethodPost, "/v1/auth/logout-all", call{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var access string
	for i := 0; i < 2; i++ {
		login := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret1"}})
		access = decode[LoginResult](t, login).Tokens.AccessToken
	}
	resp = e.do(t, http.MethodPost, "/v1/auth/logout-all", call{bearer: access})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[struct {
		Revoked int `json:"revoked"`
	}](t, resp).Revoked)
}

func TestHTTPErrorStatuses(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"invalid email", "/v1/auth/register", map[string]string{"email": "nope", "password": "secret1", "name": "A"}, http.StatusBadRequest},
		{"duplicate", "/v1/auth/register", map[string]string{"email": "a@x.com", "password": "secret1", "name": "A"}, http.StatusConflict},
		{"already registered", "/v1/auth/otp", map[string]string{"email": "a@x.com"}, http.StatusConflict},
		{"unknown forgot", "/v1/auth/password/forgot", map[string]string{"email": "ghost@x.com"}, http.StatusNotFound},
		{"no otp", "/v1/auth/otp/verify", map[string]string{"email": "b@x.com", "otp": "123456"}, http.StatusNotFound},
		{"malformed otp", "/v1/auth/otp/verify", map[string]string{"email": "b@x.com", "otp": "12"}, http.StatusBadRequest},
		{"password mismatch", "/v1/auth/password/reset", map[string]string{
			"email": "a@x.com", "resetToken": "x", "newPassword": "secret2", "confirmPassword": "secret3",
		}, http.StatusBadRequest},
		{"reset without grant", "/v1/auth/password/reset", map[string]string{
			"email": "a@x.com", "resetToken": "x", "newPassword": "secret2", "confirmPassword": "secret2",
		}, http.StatusUnauthorized},
		{"not json", "/v1/auth/login", "{", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, tc.path, call{body: tc.body})
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestHTTPStoreOutageIs503(t *testing.T) {
	e := newHTTPEnv(t)
	e.mr.Close()

	resp := e.do(t, http.MethodPost, "/v1/auth/otp", call{body: map[string]string{"email": "b@x.com"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[httpx.ErrorBody](t, resp)
	assert.NotContains(t, body.Error, "connection")
}

func TestHTTPPasswordResetFlow(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")

	resp := e.do(t, http.MethodPost, "/v1/auth/password/forgot", call{body: map[string]string{"email": "a@x.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := e.mail.last(t, "reset", "a@x.com")

	resp = e.do(t, http.MethodPost, "/v1/auth/password/verify", call{body: map[string]string{"email": "a@x.com", "otp": code}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grant := decode[struct {
		ResetToken string `json:"resetToken"`
	}](t, resp).ResetToken
	require.NotEmpty(t, grant)

	resp = e.do(t, http.MethodPost, "/v1/auth/password/reset", call{body: map[string]string{
		"email": "a@x.com", "resetToken": grant, "newPassword": "secret2", "confirmPassword": "secret2",
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret2"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPUpdateName(t *testing.T) {
	e := newHTTPEnv(t)
	e.signup(t, "a@x.com")
	login := e.do(t, http.MethodPost, "/v1/auth/login", call{body: map[string]string{"email": "a@x.com", "password": "secret1"}})
	access := decode[LoginResult](t, login).Tokens.AccessToken

	resp := e.do(t, http.MethodPatch, "/v1/users/me", call{bearer: access, body: map[string]string{"name": "Annie"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Annie", decode[struct {
		Name string `json:"name"`
	}](t, resp).Name)
}
