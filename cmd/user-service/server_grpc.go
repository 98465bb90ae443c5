package main

import (
	"net"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/services/user-service/auth"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func buildGRPCServer(cfg *config.Config, a *app) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			auth.UnaryAuthInterceptor(a.tokens),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
		),
	)

	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	auth.RegisterIdentityService(grpcServer, a.identity)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ln)
}
