// Package ops expone la superficie operacional del engine: health
// check con ping a la base y endpoint de métricas Prometheus. No es la
// API del producto; es lo que mira el balanceador y el scraper.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
)

// Pinger verifica conectividad con el storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter arma el router operacional.
func NewRouter(db Pinger) (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	mh, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	r.Method(http.MethodGet, "/metrics", mh)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
				logger.Named("ops").Warn("health ping failed", logger.Err(err))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	return r, nil
}

// Serve corre el servidor hasta que ctx se cancele; el shutdown drena
// conexiones con un grace period corto.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Named("ops").Info("ops server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
