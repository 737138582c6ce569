package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Document analyzers.
const (
	AnalyzerGemini  = "gemini"
	AnalyzerPDFText = "pdftext"
	AnalyzerNone    = "none"
)

type Config struct {
	Port     string
	LogLevel string

	GCPProjectID    string
	BigQueryDataset string
	GCSBucket       string

	StoreBackend string
	DatabaseURL  string
	SQLitePath   string

	Analyzer    string
	GeminiModel string

	QueueWorkers int
	QueueBuffer  int

	NotionToken      string
	NotionDatabaseID string
}

// Load reads a .env file when one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: read .env: %w", err)
	}
	return New()
}

// New builds a Config from the process environment only.
func New() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		GCPProjectID:     getEnv("GCP_PROJECT_ID", ""),
		BigQueryDataset:  getEnv("BIGQUERY_DATASET", "bills"),
		GCSBucket:        getEnv("GCS_BUCKET", ""),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "bills.db"),
		Analyzer:         strings.ToLower(getEnv("ANALYZER", AnalyzerPDFText)),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
	}

	var err error
	cfg.QueueWorkers, err = getEnvAsInt("QUEUE_WORKERS", 5)
	if err != nil {
		return nil, err
	}

	cfg.QueueBuffer, err = getEnvAsInt("QUEUE_BUFFER", 100)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings each backend and analyzer depends on.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendBigQuery:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the %s store", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", c.StoreBackend)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s store", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.Analyzer {
	case AnalyzerGemini, AnalyzerPDFText, AnalyzerNone:
	default:
		return fmt.Errorf("unknown ANALYZER %q", c.Analyzer)
	}

	if c.QueueWorkers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be positive, got %d", c.QueueWorkers)
	}
	if c.QueueBuffer < 0 {
		return fmt.Errorf("QUEUE_BUFFER must not be negative, got %d", c.QueueBuffer)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
