package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const probeTimeout = 500 * time.Millisecond

// Checks maps a dependency name (db, redis, ...) to its ping.
type Checks map[string]func(context.Context) error

// Run pings every dependency and reports per-name status plus the joined error.
func (c Checks) Run(ctx context.Context) (map[string]string, error) {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)

	status := make(map[string]string, len(c))
	var errs []error
	for _, n := range names {
		if err := c[n](ctx); err != nil {
			status[n] = "down"
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
			continue
		}
		status[n] = "ok"
	}
	return status, errors.Join(errs...)
}

// HealthHandler answers 200 when every check passes and 503 otherwise, with a
// JSON body naming each dependency's state.
func HealthHandler(c Checks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		status, err := c.Run(ctx)
		code := http.StatusOK
		if err != nil {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

func BootstrapMetricsServer(addr string, checks Checks, l *zap.Logger) *http.Server {
	ms := createMetricsServer(addr, checks)

	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", zap.Error(err))
		}
	}()

	return ms
}

func createMetricsServer(addr string, checks Checks) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", HealthHandler(checks))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
