package main

import (
	"net/http"
	"time"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, a *app, checks obs.Checks) (*http.Server, error) {
	mux := runtime.NewServeMux()
	if err := a.auth.Register(mux, a.mw); err != nil {
		return nil, err
	}
	if err := a.admin.Register(mux, a.mw); err != nil {
		return nil, err
	}
	probe := obs.HealthHandler(checks)
	if err := mux.HandlePath(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		probe(w, r)
	}); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(mux, "user-service.http"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
