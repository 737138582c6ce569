// Package app wires configuration into the engine and its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/bill-intelligence/internal/config"
	"github.com/dvloznov/bill-intelligence/internal/engine"
	"github.com/dvloznov/bill-intelligence/internal/gcsuploader"
	infraBQ "github.com/dvloznov/bill-intelligence/internal/infra/bigquery"
	"github.com/dvloznov/bill-intelligence/internal/infra/postgres"
	"github.com/dvloznov/bill-intelligence/internal/infra/sqlite"
	"github.com/dvloznov/bill-intelligence/internal/jobs"
	jobsinmemory "github.com/dvloznov/bill-intelligence/internal/jobs/inmemory"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/ocr"
	"github.com/dvloznov/bill-intelligence/internal/pipeline"
	"github.com/dvloznov/bill-intelligence/internal/store"
	storeinmemory "github.com/dvloznov/bill-intelligence/internal/store/inmemory"
)

// App holds everything a binary needs. Storage and Pipeline are nil when no
// GCS bucket is configured.
type App struct {
	Config   *config.Config
	Engine   *engine.Engine
	Store    store.Store
	Storage  *gcsuploader.GCSStorageService
	JobStore *jobsinmemory.Store
	Queue    *jobsinmemory.Queue
	Pipeline *pipeline.Pipeline
}

// Build opens the configured store and analyzer and assembles the engine,
// the job queue and the ingestion pipeline. The queue is not started.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	billStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	analyzer, err := NewAnalyzer(ctx, cfg)
	if err != nil {
		billStore.Close()
		return nil, fmt.Errorf("Build: %w", err)
	}

	a := &App{
		Config: cfg,
		Engine: engine.New(engine.Config{Analyzer: analyzer, Store: billStore}),
		Store:  billStore,
	}

	if cfg.GCSBucket != "" {
		a.Storage, err = gcsuploader.NewGCSStorageService(ctx, cfg.GCSBucket)
		if err != nil {
			billStore.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.Pipeline = pipeline.NewBillIngestionPipeline(a.Storage, billStore, a.Engine)
	}

	a.JobStore = jobsinmemory.NewStore()
	a.Queue = jobsinmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, a.JobStore)
	return a, nil
}

// OpenStore opens the bill store named by cfg.StoreBackend. The Postgres
// schema is migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewBigQueryBillRepository(ctx, cfg.GCPProjectID, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return repo, nil
	case config.BackendPostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return pg, nil
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return db, nil
	case config.BackendMemory, "":
		return storeinmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.StoreBackend)
	}
}

// NewAnalyzer builds the configured document analyzer. Gemini falls back to
// the PDF text layer when the model returns nothing. "none" yields nil, so
// every document becomes a degraded record.
func NewAnalyzer(ctx context.Context, cfg *config.Config) (ocr.DocumentAnalyzer, error) {
	switch cfg.Analyzer {
	case config.AnalyzerNone:
		return nil, nil
	case config.AnalyzerGemini:
		gemini, err := ocr.NewGeminiAnalyzer(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("NewAnalyzer: %w", err)
		}
		return ocr.NewChain(gemini, ocr.NewPDFTextAnalyzer()), nil
	case config.AnalyzerPDFText, "":
		return ocr.NewPDFTextAnalyzer(), nil
	default:
		return nil, fmt.Errorf("NewAnalyzer: unknown analyzer %q", cfg.Analyzer)
	}
}

// UploadStorage returns the GCS service as an interface, or a nil interface
// when uploads are processed synchronously.
func (a *App) UploadStorage() gcsuploader.StorageService {
	if a.Storage == nil {
		return nil
	}
	return a.Storage
}

// Publisher returns the job queue, or a nil interface when there is no
// pipeline to consume it.
func (a *App) Publisher() jobs.Publisher {
	if a.Pipeline == nil {
		return nil
	}
	return a.Queue
}

// JobHandler runs the ingestion pipeline for one ParseBillJob and records the
// resulting bill on the job.
func (a *App) JobHandler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseBillJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		if a.Pipeline == nil {
			return errors.New("no ingestion pipeline configured")
		}

		log := logger.WithUser(logger.FromContext(ctx), parseJob.UserID)
		log.Info().
			Str("job_id", parseJob.JobID).
			Str("gcs_uri", parseJob.GCSURI).
			Msg("Processing parse job")

		state, err := pipeline.IngestBillFromGCS(ctx, a.Pipeline, parseJob.UserID, parseJob.GCSURI)
		if err != nil {
			return err
		}

		parseJob.BillID = state.Bill.ID
		parseJob.Duplicate = state.Duplicate != nil
		return nil
	}
}

// Close releases the queue, the GCS client and the store.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
