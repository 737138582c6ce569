package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bill-intelligence/internal/app"
	"github.com/dvloznov/bill-intelligence/internal/config"
	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/forecast"
	"github.com/dvloznov/bill-intelligence/internal/gcsuploader"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/pipeline"
	"github.com/dvloznov/bill-intelligence/internal/store"
	"github.com/dvloznov/bill-intelligence/internal/trends"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(log)
	case "upload":
		runUpload(log)
	case "ingest":
		runIngest(log)
	case "list":
		runList(log)
	case "forecast":
		runForecast(log)
	case "trends":
		runTrends(log)
	case "stats":
		runStats(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bill Intelligence CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Extract a bill from a local PDF or text file")
	fmt.Println("  upload    Upload a PDF to GCS and ingest it")
	fmt.Println("  ingest    Ingest a bill already stored in GCS")
	fmt.Println("  list      List a user's bills, newest first")
	fmt.Println("  forecast  Forecast monthly spending")
	fmt.Println("  trends    Analyze consumption trends")
	fmt.Println("  stats     Show per-month and per-type statistics")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup loads configuration and builds the application with a logger in ctx.
func setup(log zerolog.Logger) (context.Context, *app.App) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))
	ctx := logger.WithContext(context.Background(), log)

	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	return ctx, application
}

func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a bill PDF or a .txt file with recognized text")
	userID := fs.String("user", "cli", "User the bill belongs to")
	save := fs.Bool("save", false, "Store the extracted bill")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli extract -file PATH [-user ID] [-save]")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx, application := setup(log)
	defer application.Close()

	filename := filepath.Base(*filePath)
	var bill *domain.BillRecord
	if strings.EqualFold(filepath.Ext(filename), ".txt") {
		bill = application.Engine.Extract(string(data), filename, *userID)
	} else {
		bill = application.Engine.RecordFromDocument(ctx, data, filename, *userID)
	}

	if *save {
		if err := application.Engine.Save(ctx, bill); err != nil {
			log.Fatal().Err(err).Msg("Failed to store bill")
		}
	}
	printJSON(bill)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local PDF file")
	userID := fs.String("user", "", "User the bill belongs to")
	bucket := fs.String("bucket", "", "GCS bucket name (or set GCS_BUCKET env)")
	fs.Parse(os.Args[2:])

	if *filePath == "" || *userID == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH -user ID [-bucket NAME]")
	}
	if *bucket != "" {
		os.Setenv("GCS_BUCKET", *bucket)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx, application := setup(log)
	defer application.Close()

	if application.Storage == nil {
		log.Fatal().Msg("No GCS bucket configured: pass -bucket or set GCS_BUCKET")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	gcsURI, err := application.Storage.UploadUserDocument(ctx, *userID, filepath.Base(*filePath), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	log.Info().Str("gcs_uri", gcsURI).Msg("Uploaded bill")

	ingest(ctx, log, application, *userID, gcsURI)
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the bill PDF")
	userID := fs.String("user", "", "User the bill belongs to")
	fs.Parse(os.Args[2:])

	if *gcsURI == "" || *userID == "" {
		log.Fatal().Msg("Usage: cli ingest -gcs-uri URI -user ID")
	}
	bucket, _, err := gcsuploader.ParseGCSURI(*gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid GCS URI")
	}
	if os.Getenv("GCS_BUCKET") == "" {
		// Objects are read by full URI; the bucket only enables the client.
		os.Setenv("GCS_BUCKET", bucket)
	}

	ctx, application := setup(log)
	defer application.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	ingest(ctx, log, application, *userID, *gcsURI)
}

func ingest(ctx context.Context, log zerolog.Logger, application *app.App, userID, gcsURI string) {
	state, err := pipeline.IngestBillFromGCS(ctx, application.Pipeline, userID, gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	if state.Duplicate != nil {
		log.Info().Str("bill_id", state.Duplicate.ID).Msg("Document was already ingested")
	}
	printJSON(state.Bill)
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	userID := fs.String("user", "", "User whose bills to list")
	billType := fs.String("type", "", "Optional bill type filter")
	limit := fs.Int("limit", store.DefaultListLimit, "Maximum number of bills")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli list -user ID [-type TYPE] [-limit N]")
	}
	bt := parseBillType(log, *billType)

	ctx, application := setup(log)
	defer application.Close()

	printJSON(application.Engine.ListBills(ctx, *userID, bt, *limit))
}

func runForecast(log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	userID := fs.String("user", "", "User whose bills to forecast")
	billType := fs.String("type", "", "Optional bill type")
	months := fs.Int("months", forecast.DefaultMonthsAhead, "Months to forecast")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli forecast -user ID [-type TYPE] [-months N]")
	}
	bt := parseBillType(log, *billType)

	ctx, application := setup(log)
	defer application.Close()

	res, err := application.Engine.AggregateAndForecast(ctx, *userID, bt, *months)
	var noData *forecast.NoDataError
	if errors.As(err, &noData) {
		fmt.Fprintf(os.Stderr, "No data available for %s\n", noData.BillType)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Forecast failed")
	}
	printJSON(res)
}

func runTrends(log zerolog.Logger) {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	userID := fs.String("user", "", "User whose consumption to analyze")
	billType := fs.String("type", string(domain.BillTypeElectricity), "Bill type")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli trends -user ID [-type TYPE]")
	}
	bt := parseBillType(log, *billType)

	ctx, application := setup(log)
	defer application.Close()

	res, err := application.Engine.ConsumptionTrends(ctx, *userID, bt)
	if errors.Is(err, trends.ErrInsufficientData) {
		fmt.Fprintln(os.Stderr, "Not enough bills with consumption data to compute trends")
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Trend analysis failed")
	}
	printJSON(res)
}

func runStats(log zerolog.Logger) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	userID := fs.String("user", "", "User whose bills to summarize")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli stats -user ID")
	}

	ctx, application := setup(log)
	defer application.Close()

	printJSON(application.Engine.Stats(ctx, *userID))
}

func parseBillType(log zerolog.Logger, s string) domain.BillType {
	if s == "" {
		return ""
	}
	bt, ok := domain.ParseBillType(s)
	if !ok {
		log.Fatal().Str("type", s).Msg("Unknown bill type")
	}
	return bt
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
