// Package engine is the entry point of the bill intelligence core. It
// extracts bill records from documents, forecasts future amounts and reports
// consumption trends. Collaborators are injected; a missing analyzer or store
// degrades the output instead of failing.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dvloznov/bill-intelligence/internal/aggregate"
	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/extraction"
	"github.com/dvloznov/bill-intelligence/internal/forecast"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/metrics"
	"github.com/dvloznov/bill-intelligence/internal/ocr"
	"github.com/dvloznov/bill-intelligence/internal/store"
	"github.com/dvloznov/bill-intelligence/internal/trends"
)

// Config holds the engine's collaborators. Every field is optional.
type Config struct {
	Analyzer ocr.DocumentAnalyzer
	Store    store.BillStore
	// Now defaults to time.Now.
	Now func() time.Time
	// Noise feeds the mock forecast; defaults to a standard normal draw.
	Noise func() float64
}

// Engine is safe for concurrent use; it keeps no mutable state.
type Engine struct {
	analyzer  ocr.DocumentAnalyzer
	store     store.BillStore
	extractor *extraction.Extractor
	now       func() time.Time
	noise     func() float64
}

// New creates an Engine.
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		analyzer:  cfg.Analyzer,
		store:     cfg.Store,
		extractor: extraction.New(now),
		now:       now,
		noise:     cfg.Noise,
	}
}

// Extract builds a bill record from already recognized text. Nothing is
// persisted.
func (e *Engine) Extract(rawText, filename, userID string) *domain.BillRecord {
	bill := e.extractor.Extract(rawText, filename, userID)
	metrics.BillsExtracted.WithLabelValues(string(bill.BillType), string(bill.Confidence)).Inc()
	return bill
}

// ProcessDocument recognizes a document, extracts its fields and saves the
// record when a store is configured. When the document cannot be read the
// degraded record is returned and saved instead. Save failures are logged.
func (e *Engine) ProcessDocument(ctx context.Context, document []byte, filename, userID string) *domain.BillRecord {
	bill := e.RecordFromDocument(ctx, document, filename, userID)
	_ = e.Save(ctx, bill)
	return bill
}

// RecordFromDocument is ProcessDocument without the save.
func (e *Engine) RecordFromDocument(ctx context.Context, document []byte, filename, userID string) *domain.BillRecord {
	var bill *domain.BillRecord
	text, err := e.recognize(ctx, document)
	if err != nil {
		log := logger.WithUser(logger.FromContext(ctx), userID)
		log.Warn().
			Err(err).
			Str("filename", filename).
			Msg("Document analysis unavailable, using degraded record")
		metrics.BillsDegraded.Inc()
		bill = e.extractor.Degraded(filename, userID)
	} else {
		bill = e.Extract(text, filename, userID)
	}
	bill.Checksum = Checksum(document)
	return bill
}

// Save persists bill. Without a store it does nothing.
func (e *Engine) Save(ctx context.Context, bill *domain.BillRecord) error {
	if e.store == nil {
		return nil
	}
	log := logger.WithUser(logger.FromContext(ctx), bill.UserID)
	if err := e.store.SaveBill(ctx, bill); err != nil {
		metrics.CollaboratorErrors.WithLabelValues("store", "save").Inc()
		log.Error().Err(err).Str("bill_id", bill.ID).Msg("Failed to save bill")
		return fmt.Errorf("Save: %w", err)
	}
	log.Info().
		Str("bill_id", bill.ID).
		Str("bill_type", string(bill.BillType)).
		Bool("needs_manual_review", bill.NeedsManualReview()).
		Msg("Bill stored")
	return nil
}

func (e *Engine) recognize(ctx context.Context, document []byte) (string, error) {
	if e.analyzer == nil {
		return "", fmt.Errorf("recognize: no document analyzer configured")
	}
	lines, err := e.analyzer.AnalyzeDocument(ctx, document)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("analyzer", "analyze").Inc()
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.Join(lines, " "), nil
}

// AggregateAndForecast forecasts a user's next monthsAhead monthly totals.
// An empty billType covers every bill. When billType is set and the user has
// no bills of that type a *forecast.NoDataError is returned; sparse history
// instead yields a mock forecast.
func (e *Engine) AggregateAndForecast(ctx context.Context, userID string, billType domain.BillType, monthsAhead int) (*forecast.Result, error) {
	opts := forecast.Options{
		MonthsAhead: monthsAhead,
		BillType:    billType,
		Now:         e.now,
		Noise:       e.noise,
	}

	if e.store == nil {
		return e.observe(forecast.Mock(opts)), nil
	}

	bills := e.query(ctx, userID, billType, store.ForecastHistoryLimit)
	if billType != "" && len(bills) == 0 {
		return nil, &forecast.NoDataError{BillType: billType}
	}

	opts.BillCount = len(bills)
	for _, b := range bills {
		if amount, ok := aggregate.BillAmount(b); ok {
			opts.BaseAmounts = append(opts.BaseAmounts, amount)
		}
	}

	if len(bills) < forecast.MinLinearMonths {
		return e.observe(forecast.Mock(opts)), nil
	}

	series := aggregate.Series(ctx, bills)
	return e.observe(forecast.Forecast(ctx, series, opts)), nil
}

func (e *Engine) observe(res *forecast.Result) *forecast.Result {
	metrics.Forecasts.WithLabelValues(string(res.Algorithm)).Inc()
	return res
}

// ConsumptionTrends analyses the consumption readings of one bill type.
// trends.ErrInsufficientData is returned when fewer than two months have a
// reading.
func (e *Engine) ConsumptionTrends(ctx context.Context, userID string, billType domain.BillType) (*trends.Result, error) {
	bills := e.query(ctx, userID, billType, store.TrendHistoryLimit)
	return trends.Analyze(bills)
}

// Stats summarizes all bills of a user.
func (e *Engine) Stats(ctx context.Context, userID string) aggregate.Summary {
	bills := e.query(ctx, userID, "", store.StatsHistoryLimit)
	return aggregate.Summarize(ctx, bills)
}

// ListBills returns a user's bills, newest first, optionally of one type.
func (e *Engine) ListBills(ctx context.Context, userID string, billType domain.BillType, limit int) []*domain.BillRecord {
	return e.query(ctx, userID, billType, store.NormalizeLimit(limit))
}

// query reads from the store. A missing or failing store reads as empty.
func (e *Engine) query(ctx context.Context, userID string, billType domain.BillType, limit int) []*domain.BillRecord {
	if e.store == nil {
		return nil
	}

	var (
		bills []*domain.BillRecord
		err   error
	)
	if billType == "" {
		bills, err = e.store.ListBillsByUser(ctx, userID, limit)
	} else {
		bills, err = e.store.ListBillsByUserAndType(ctx, userID, billType, limit)
	}
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("store", "query").Inc()
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("bill_type", string(billType)).
			Msg("Failed to query bills, treating as empty")
		return nil
	}
	return bills
}

// Checksum fingerprints a document's bytes for duplicate detection.
func Checksum(document []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(document))
}
