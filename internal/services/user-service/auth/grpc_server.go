package auth

import (
	"context"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// IdentityServiceName is the gRPC service other portal backends call with the
// end user's access token to learn who they are acting for.
const IdentityServiceName = "jobportal.user.v1.IdentityService"

type identityService interface {
	WhoAmI(ctx context.Context) (*structpb.Struct, error)
	Profile(ctx context.Context) (*structpb.Struct, error)
}

type IdentityGRPC struct {
	uc  *Usecase
	log *zap.Logger
}

var _ identityService = (*IdentityGRPC)(nil)

func NewIdentityGRPC(uc *Usecase, log *zap.Logger) *IdentityGRPC {
	return &IdentityGRPC{uc: uc, log: obs.Component(log, "auth.grpc")}
}

// RegisterIdentityService mounts the service; UnaryAuthInterceptor guards it.
func RegisterIdentityService(s grpc.ServiceRegistrar, srv *IdentityGRPC) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: IdentityServiceName,
		HandlerType: (*identityService)(nil),
		Methods: []grpc.MethodDesc{
			unaryMethod("WhoAmI", identityService.WhoAmI),
			unaryMethod("Profile", identityService.Profile),
		},
	}, srv)
}

func unaryMethod(name string, call func(identityService, context.Context) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + IdentityServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(identityService)
			if icpt == nil {
				return call(svc, ctx)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return icpt(ctx, in, info, func(ctx context.Context, _ any) (any, error) {
				return call(svc, ctx)
			})
		},
	}
}

func (g *IdentityGRPC) WhoAmI(ctx context.Context) (*structpb.Struct, error) {
	id, ok := authctx.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	return structpb.NewStruct(map[string]any{
		"userId":   id.UserID.String(),
		"email":    id.Email,
		"role":     string(id.Role),
		"userType": id.UserType,
	})
}

func (g *IdentityGRPC) Profile(ctx context.Context) (*structpb.Struct, error) {
	id, ok := authctx.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	p, err := g.uc.Me(ctx, id.UserID)
	if err != nil {
		return nil, g.grpcError(ctx, err)
	}
	return structpb.NewStruct(map[string]any{
		"userId":         p.User.ID.String(),
		"email":          p.User.Email,
		"name":           p.User.Name,
		"role":           string(p.User.Role),
		"isVerified":     p.User.IsVerified,
		"isBlocked":      p.User.IsBlocked,
		"activeSessions": p.ActiveSessions,
	})
}

func (g *IdentityGRPC) grpcError(ctx context.Context, err error) error {
	var code codes.Code
	switch domainauth.KindOf(err) {
	case domainauth.KindValidation:
		code = codes.InvalidArgument
	case domainauth.KindNotFound:
		code = codes.NotFound
	case domainauth.KindConflict:
		code = codes.AlreadyExists
	case domainauth.KindUnauthorized:
		code = codes.Unauthenticated
	case domainauth.KindForbidden:
		code = codes.PermissionDenied
	case domainauth.KindTooManyRequests:
		code = codes.ResourceExhausted
	case domainauth.KindInfrastructure:
		obs.WithTrace(ctx, g.log).Error("identity rpc", zap.Error(err))
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		obs.WithTrace(ctx, g.log).Error("identity rpc", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
