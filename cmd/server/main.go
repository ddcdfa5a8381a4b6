package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clip-gateway/internal/orchestrator"
	"clip-gateway/internal/platform/config"
	"clip-gateway/internal/platform/logger"
	"clip-gateway/internal/platform/metrics"
	"clip-gateway/internal/token"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	secretList, err := config.RequireEnv("SHARED_SECRET")
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	// Comma-separated: the first secret signs, the rest still validate so
	// tokens survive a rotation.
	tokens, err := token.New(strings.Split(secretList, ",")...)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	bucket, err := config.RequireEnv("SEGMENT_BUCKET")
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	role, err := config.RequireEnv("MEDIACONVERT_ROLE")
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	publicDomain := config.GetEnv("PUBLIC_DOMAIN", bucket+".s3.amazonaws.com")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("load aws config", "error", err)
		os.Exit(1)
	}
	objects := orchestrator.NewS3ObjectStore(s3.NewFromConfig(awsCfg), bucket, publicDomain)

	mcEndpoint := config.GetEnv("MEDIACONVERT_ENDPOINT", "")
	mcClient := mediaconvert.NewFromConfig(awsCfg, func(o *mediaconvert.Options) {
		if mcEndpoint != "" {
			o.BaseEndpoint = aws.String(mcEndpoint)
		}
	})
	transcoder := orchestrator.NewMediaConvertTranscoder(mcClient, role, bucket)

	metadata, err := orchestrator.NewSQLiteMetadataStore(config.GetEnv("METADATA_DB", "segments.db"))
	if err != nil {
		log.Error("open metadata store", "error", err)
		os.Exit(1)
	}
	defer metadata.Close()

	svc := orchestrator.NewService(objects, metadata, transcoder, tokens, log, orchestrator.ServiceConfig{
		TokenTTL:     config.GetEnvDuration("TOKEN_TTL", orchestrator.DefaultTokenTTL),
		PollInterval: config.GetEnvDuration("POLL_INTERVAL", orchestrator.DefaultPollInterval),
		PollBudget:   config.GetEnvDuration("POLL_BUDGET", orchestrator.DefaultPollBudget),
		FrameRate:    config.GetEnvInt("FRAME_RATE", 0),
	})
	met := metrics.New()
	h := orchestrator.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/segments/{segment_id}/stream", h.RequestSegment)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"segment_bucket", bucket,
		"public_domain", publicDomain,
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

	log.Info("server stopped")
}
