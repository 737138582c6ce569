// Package aggregate groups bill records into calendar months.
package aggregate

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/logger"
)

// MonthLayout formats bucket keys.
const MonthLayout = "2006-01"

// DateSource tells which field supplied a bill's representative date.
type DateSource string

const (
	SourceDueDate       DateSource = "due_date"
	SourceExtractedDate DateSource = "extracted_date"
	SourceUploadDate    DateSource = "upload_date"
)

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var extractedDateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2006-1-2 15:04:05",
}

// MonthlyBucket is the aggregate of one calendar month.
type MonthlyBucket struct {
	Month              string    `json:"month"`
	TotalAmount        float64   `json:"total_amount"`
	BillCount          int       `json:"bill_count"`
	RepresentativeDate time.Time `json:"representative_date"`
}

// MonthlyPoint is one entry of the series fed to the forecaster.
type MonthlyPoint struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// RepresentativeDate picks the date used to place a bill in a month: the due
// date, then the extracted issue date, then the upload time.
func RepresentativeDate(bill *domain.BillRecord) (time.Time, DateSource, bool) {
	if bill.DueDate != nil {
		if t, ok := parseAny(*bill.DueDate, dueDateLayouts); ok {
			return t, SourceDueDate, true
		}
	}
	if bill.ExtractedData.Date != "" {
		if t, ok := parseAny(bill.ExtractedData.Date, extractedDateLayouts); ok {
			return t, SourceExtractedDate, true
		}
	}
	if !bill.UploadTimestamp.IsZero() {
		return bill.UploadTimestamp, SourceUploadDate, true
	}
	return time.Time{}, "", false
}

// BillAmount returns the bill's amount, falling back to the amount text in
// the extracted data. ok is false when neither yields a number.
func BillAmount(bill *domain.BillRecord) (float64, bool) {
	if bill.Amount != nil {
		return *bill.Amount, true
	}
	if bill.ExtractedData.Amount == "" {
		return 0, false
	}
	v, err := domain.ParseAmount(bill.ExtractedData.Amount)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Buckets groups bills by the month of their representative date, ascending.
// Bills without any usable date are skipped and logged.
func Buckets(ctx context.Context, bills []*domain.BillRecord) []MonthlyBucket {
	log := logger.FromContext(ctx)
	byMonth := make(map[string]*MonthlyBucket)

	for _, bill := range bills {
		date, _, ok := RepresentativeDate(bill)
		if !ok {
			log.Warn().Str("bill_id", bill.ID).Msg("Bill has no usable date, skipped from monthly aggregation")
			continue
		}

		amount, ok := BillAmount(bill)
		if !ok && bill.ExtractedData.Amount != "" {
			log.Warn().
				Str("bill_id", bill.ID).
				Str("amount_text", bill.ExtractedData.Amount).
				Msg("Unparseable bill amount counted as zero")
		}

		key := date.Format(MonthLayout)
		b, exists := byMonth[key]
		if !exists {
			b = &MonthlyBucket{Month: key, RepresentativeDate: date}
			byMonth[key] = b
		}
		b.TotalAmount += amount
		b.BillCount++
		if date.Before(b.RepresentativeDate) {
			b.RepresentativeDate = date
		}
	}

	out := make([]MonthlyBucket, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Series returns the monthly totals used for forecasting. Months whose total
// is zero carry no signal and are dropped.
func Series(ctx context.Context, bills []*domain.BillRecord) []MonthlyPoint {
	var out []MonthlyPoint
	for _, b := range Buckets(ctx, bills) {
		if b.TotalAmount <= 0 {
			continue
		}
		out = append(out, MonthlyPoint{Month: b.Month, Amount: b.TotalAmount})
	}
	return out
}

func parseAny(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
