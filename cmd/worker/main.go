package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/app"
	"github.com/dvloznov/bill-intelligence/internal/config"
	"github.com/dvloznov/bill-intelligence/internal/gcsuploader"
	"github.com/dvloznov/bill-intelligence/internal/jobs"
	"github.com/dvloznov/bill-intelligence/internal/logger"
)

// The worker re-ingests bills already stored in GCS through the job queue,
// e.g. after changing the analyzer:
//
//	worker -user alice gs://bucket/users/alice/20240301T101500_bolletta.pdf ...
func main() {
	log := logger.New()

	userID := flag.String("user", "", "User the documents belong to")
	flag.Parse()
	uris := flag.Args()

	if *userID == "" || len(uris) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: worker -user ID GCS_URI...")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.GCSBucket == "" {
		bucket, _, err := gcsuploader.ParseGCSURI(uris[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid GCS URI")
		}
		cfg.GCSBucket = bucket
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if err := application.Queue.Start(ctx, application.JobHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("workers", cfg.QueueWorkers).Int("documents", len(uris)).Msg("Worker service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Interrupted, shutting down worker service...")
		cancel()
	}()

	for _, uri := range uris {
		job := &jobs.ParseBillJob{
			UserID:   *userID,
			GCSURI:   uri,
			Filename: gcsuploader.ExtractFilenameFromGCSURI(uri),
		}
		if err := application.Queue.PublishParseBill(ctx, job); err != nil {
			log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue document")
		}
	}

	finished := waitForJobs(ctx, application, *userID)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := application.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := 0
	for _, job := range finished {
		if job.Status == jobs.JobStatusFailed {
			failed++
			fmt.Printf("FAILED    %s  %s\n", job.GCSURI, job.Error)
			continue
		}
		state := "STORED   "
		if job.Duplicate {
			state = "DUPLICATE"
		}
		fmt.Printf("%s %s  %s\n", state, job.GCSURI, job.BillID)
	}

	log.Info().Int("jobs", len(finished)).Int("failed", failed).Msg("Worker service exited")
	if failed > 0 {
		os.Exit(1)
	}
}

// waitForJobs polls the job store until every job of the user has completed
// or failed, or ctx is cancelled.
func waitForJobs(ctx context.Context, application *app.App, userID string) []*jobs.ParseBillJob {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		list, err := application.JobStore.ListJobs(ctx, jobs.JobFilter{UserID: userID})
		if err == nil && allDone(list) {
			return list
		}

		select {
		case <-ctx.Done():
			list, _ := application.JobStore.ListJobs(context.Background(), jobs.JobFilter{UserID: userID})
			return list
		case <-ticker.C:
		}
	}
}

func allDone(list []*jobs.ParseBillJob) bool {
	for _, job := range list {
		if job.Status != jobs.JobStatusCompleted && job.Status != jobs.JobStatusFailed {
			return false
		}
	}
	return true
}
