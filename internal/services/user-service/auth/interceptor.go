package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/NordCoder/Jobportal/internal/services/shared/authctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var publicServicePrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.v1.ServerReflection/",
	"/grpc.reflection.v1alpha.ServerReflection/",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicServicePrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

func UnaryAuthInterceptor(v AccessVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		if isPublic(info.FullMethod) {
			return next(ctx, req)
		}

		token := tokenFromMetadata(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing access token")
		}
		id, ok := identityFromToken(v, token)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return next(authctx.WithIdentity(ctx, id), req)
	}
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if t := bearerToken(v); t != "" {
			return t
		}
	}
	for _, key := range []string{"grpcgateway-cookie", "cookie"} {
		for _, v := range md.Get(key) {
			if t := cookieValue(v, AccessCookie); t != "" {
				return t
			}
		}
	}
	return ""
}

func cookieValue(header, name string) string {
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
