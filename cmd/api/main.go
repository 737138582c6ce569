package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/bill-intelligence/internal/api/handlers"
	"github.com/dvloznov/bill-intelligence/internal/api/middleware"
	"github.com/dvloznov/bill-intelligence/internal/app"
	"github.com/dvloznov/bill-intelligence/internal/config"
	"github.com/dvloznov/bill-intelligence/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Flags override the environment
	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	bucket := flag.String("bucket", cfg.GCSBucket, "GCS bucket for uploaded bills (or set GCS_BUCKET env)")
	flag.Parse()
	cfg.Port = *port
	cfg.GCSBucket = *bucket

	log = log.Level(logger.ParseLevel(cfg.LogLevel))
	if cfg.GCSBucket == "" {
		log.Warn().Msg("No GCS bucket configured - uploads will be processed synchronously")
	}

	ctx := context.Background()

	application, err := app.Build(logger.WithContext(ctx, log), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Start workers in background when uploads go through the queue
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if application.Pipeline != nil {
		log.Info().Msg("Starting job worker")
		if err := application.Queue.Start(workerCtx, application.JobHandler()); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job worker")
		}
	}

	billsHandler := handlers.NewBillsHandler(application.Engine, application.UploadStorage(), application.Publisher(), log)
	jobsHandler := handlers.NewJobsHandler(application.JobStore, log)

	mux := handlers.NewRouter(billsHandler, jobsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.UserID(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("analyzer", cfg.Analyzer).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling the workers
	if err := application.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := application.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}

	log.Info().Msg("Server exited")
}
