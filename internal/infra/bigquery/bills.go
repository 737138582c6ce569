package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// BillRow is one row of the bills table.
type BillRow struct {
	BillID   string    `bigquery:"bill_id"`  // REQUIRED
	UserID   string    `bigquery:"user_id"`  // REQUIRED
	Filename string    `bigquery:"filename"` // REQUIRED
	UploadTS time.Time `bigquery:"upload_ts"`

	ExtractedText string `bigquery:"extracted_text"`
	BillType      string `bigquery:"bill_type"` // REQUIRED

	Supplier bigquery.NullString  `bigquery:"supplier"`
	Amount   bigquery.NullFloat64 `bigquery:"amount"`
	BillDate bigquery.NullDate    `bigquery:"bill_date"`
	DueDate  bigquery.NullString  `bigquery:"due_date"` // YYYY-MM-DDTHH:MM:SS

	BillingPeriodStart bigquery.NullString `bigquery:"billing_period_start"`
	BillingPeriodEnd   bigquery.NullString `bigquery:"billing_period_end"`

	Consumption   bigquery.NullJSON   `bigquery:"consumption"`
	AccountNumber bigquery.NullString `bigquery:"account_number"`

	ExtractionConfidence string `bigquery:"extraction_confidence"`
	// Stored for reporting queries; recomputed from the record on read.
	NeedsManualReview bool `bigquery:"needs_manual_review"`

	ExtractedDate     bigquery.NullString `bigquery:"extracted_date"`
	ExtractedAmount   bigquery.NullString `bigquery:"extracted_amount"`
	ExtractedSupplier bigquery.NullString `bigquery:"extracted_supplier"`

	Checksum bigquery.NullString `bigquery:"checksum_xxhash"`
	GCSURI   bigquery.NullString `bigquery:"gcs_uri"`
}

// BillToRow maps a record to its table row.
func BillToRow(b *domain.BillRecord) (*BillRow, error) {
	row := &BillRow{
		BillID:               b.ID,
		UserID:               b.UserID,
		Filename:             b.Filename,
		UploadTS:             b.UploadTimestamp,
		ExtractedText:        b.RawText,
		BillType:             string(b.BillType),
		Supplier:             nullString(b.Supplier),
		DueDate:              nullString(b.DueDate),
		AccountNumber:        nullString(b.AccountNumber),
		ExtractionConfidence: string(b.Confidence),
		NeedsManualReview:    b.NeedsManualReview(),
		ExtractedDate:        nullText(b.ExtractedData.Date),
		ExtractedAmount:      nullText(b.ExtractedData.Amount),
		ExtractedSupplier:    nullText(b.ExtractedData.Supplier),
		Checksum:             nullText(b.Checksum),
		GCSURI:               nullText(b.GCSURI),
	}
	if b.Amount != nil {
		row.Amount = bigquery.NullFloat64{Float64: *b.Amount, Valid: true}
	}
	if b.BillDate != nil {
		row.BillDate = bigquery.NullDate{Date: *b.BillDate, Valid: true}
	}
	if b.BillingPeriod != nil {
		row.BillingPeriodStart = nullText(b.BillingPeriod.Start)
		row.BillingPeriodEnd = nullText(b.BillingPeriod.End)
	}
	if len(b.Consumption) > 0 {
		data, err := json.Marshal(b.Consumption)
		if err != nil {
			return nil, fmt.Errorf("BillToRow: marshal consumption: %w", err)
		}
		row.Consumption = bigquery.NullJSON{JSONVal: string(data), Valid: true}
	}
	return row, nil
}

// RowToBill maps a table row back to a record.
func RowToBill(row *BillRow) (*domain.BillRecord, error) {
	b := &domain.BillRecord{
		ID:              row.BillID,
		UserID:          row.UserID,
		Filename:        row.Filename,
		UploadTimestamp: row.UploadTS,
		RawText:         row.ExtractedText,
		BillType:        domain.BillType(row.BillType),
		Supplier:        stringPtr(row.Supplier),
		DueDate:         stringPtr(row.DueDate),
		AccountNumber:   stringPtr(row.AccountNumber),
		Confidence:      domain.Confidence(row.ExtractionConfidence),
		ExtractedData: domain.ExtractedData{
			Date:     row.ExtractedDate.StringVal,
			Amount:   row.ExtractedAmount.StringVal,
			Supplier: row.ExtractedSupplier.StringVal,
		},
		Checksum: row.Checksum.StringVal,
		GCSURI:   row.GCSURI.StringVal,
	}
	if row.Amount.Valid {
		b.Amount = domain.Ptr(row.Amount.Float64)
	}
	if row.BillDate.Valid {
		b.BillDate = domain.Ptr(row.BillDate.Date)
	}
	if row.BillingPeriodStart.Valid || row.BillingPeriodEnd.Valid {
		b.BillingPeriod = &domain.BillingPeriod{
			Start: row.BillingPeriodStart.StringVal,
			End:   row.BillingPeriodEnd.StringVal,
		}
	}
	if row.Consumption.Valid && row.Consumption.JSONVal != "" {
		var c domain.Consumption
		if err := json.Unmarshal([]byte(row.Consumption.JSONVal), &c); err != nil {
			return nil, fmt.Errorf("RowToBill: unmarshal consumption of %s: %w", row.BillID, err)
		}
		b.Consumption = c
	}
	return b, nil
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func nullText(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func stringPtr(s bigquery.NullString) *string {
	if !s.Valid {
		return nil
	}
	return domain.Ptr(s.StringVal)
}
