// The edge daemon fronts the content origin and gates every chunk fetch
// behind access-token validation, with no calls back to the orchestrator.
package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clip-gateway/internal/edge"
	"clip-gateway/internal/platform/config"
	"clip-gateway/internal/platform/logger"
	"clip-gateway/internal/platform/metrics"
	"clip-gateway/internal/token"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("EDGE_PORT", "8090")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	secretList, err := config.RequireEnv("SHARED_SECRET")
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	tokens, err := token.New(strings.Split(secretList, ",")...)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	originRaw, err := config.RequireEnv("ORIGIN_URL")
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	origin, err := url.Parse(originRaw)
	if err != nil {
		log.Error("invalid ORIGIN_URL", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	gate := edge.NewGatekeeper(tokens, log, met)
	proxy := httputil.NewSingleHostReverseProxy(origin)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/stream/*", gate.Protect(proxy))

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("edge starting",
		"port", port,
		"origin", origin.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("edge stopped")
}
