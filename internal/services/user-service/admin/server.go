package admin

import (
	"context"
	"net/http"
	"strconv"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/user"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"github.com/NordCoder/Jobportal/internal/services/shared/httpx"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

type RoleGuard interface {
	RequireRole(role user.Role, next runtime.HandlerFunc) runtime.HandlerFunc
}

type Server struct {
	uc  *Usecase
	log *zap.Logger
}

func NewServer(uc *Usecase, log *zap.Logger) *Server {
	return &Server{uc: uc, log: obs.Component(log, "admin.http")}
}

func (s *Server) Register(mux *runtime.ServeMux, guard RoleGuard) error {
	if err := mux.HandlePath(http.MethodGet, "/v1/admin/users", guard.RequireRole(user.RoleAdmin, s.list)); err != nil {
		return err
	}
	if err := mux.HandlePath(http.MethodPost, "/v1/admin/users/{id}/block", guard.RequireRole(user.RoleAdmin, s.block)); err != nil {
		return err
	}
	if err := mux.HandlePath(http.MethodPost, "/v1/admin/users/{id}/unblock", guard.RequireRole(user.RoleAdmin, s.unblock)); err != nil {
		return err
	}
	if err := mux.HandlePath(http.MethodPost, "/v1/admin/users/{id}/verify", guard.RequireRole(user.RoleAdmin, s.verify)); err != nil {
		return err
	}
	return mux.HandlePath(http.MethodGet, "/v1/admin/outbox/failed", guard.RequireRole(user.RoleAdmin, s.parkedMail))
}

func (s *Server) parkedMail(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.uc.ListParkedMail(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, obs.WithTrace(r.Context(), s.log), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		Messages []ParkedMessage `json:"messages"`
	}{msgs})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	page, err := s.uc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(w, obs.WithTrace(r.Context(), s.log), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) block(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.toggle(w, r, params, s.uc.Block)
}

func (s *Server) unblock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.toggle(w, r, params, s.uc.Unblock)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.toggle(w, r, params, s.uc.Verify)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, params map[string]string,
	op func(ctx context.Context, actor, target uuid.UUID) (*user.Identity, error)) {
	log := obs.WithTrace(r.Context(), s.log)
	target, err := uuid.Parse(params["id"])
	if err != nil {
		httpx.WriteError(w, log, domainauth.ErrInvalidInput)
		return
	}
	actor, _ := authctx.FromContext(r.Context())
	id, err := op(r.Context(), actor.UserID, target)
	if err != nil {
		httpx.WriteError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, id)
}
