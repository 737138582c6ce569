// Package sqlite stores bill records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

var _ store.Store = (*SQLiteStore)(nil)

// SQLiteStore implements store.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath, creating parent directories and the
// schema when missing.
func New(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite.New: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `
    bill_id, user_id, filename, upload_ts, extracted_text, bill_type,
    supplier, amount, bill_date, due_date, billing_period_start, billing_period_end,
    consumption, account_number, extraction_confidence,
    extracted_date, extracted_amount, extracted_supplier, checksum_xxhash, gcs_uri`

// SaveBill implements store.BillStore.
func (s *SQLiteStore) SaveBill(ctx context.Context, bill *domain.BillRecord) error {
	if bill.ID == "" {
		return errors.New("SaveBill: bill has no id")
	}

	var uploadTS sql.NullInt64
	if !bill.UploadTimestamp.IsZero() {
		uploadTS = sql.NullInt64{Int64: bill.UploadTimestamp.UnixNano(), Valid: true}
	}
	var billDate sql.NullString
	if bill.BillDate != nil {
		billDate = sql.NullString{String: bill.BillDate.String(), Valid: true}
	}
	var periodStart, periodEnd sql.NullString
	if bill.BillingPeriod != nil {
		periodStart = sql.NullString{String: bill.BillingPeriod.Start, Valid: true}
		periodEnd = sql.NullString{String: bill.BillingPeriod.End, Valid: true}
	}
	var consumption sql.NullString
	if len(bill.Consumption) > 0 {
		data, err := json.Marshal(bill.Consumption)
		if err != nil {
			return fmt.Errorf("SaveBill: marshal consumption: %w", err)
		}
		consumption = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO bills (
            bill_id, user_id, filename, upload_ts, extracted_text, bill_type,
            supplier, amount, bill_date, due_date, billing_period_start, billing_period_end,
            consumption, account_number, extraction_confidence, needs_manual_review,
            extracted_date, extracted_amount, extracted_supplier, checksum_xxhash, gcs_uri
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.UserID, bill.Filename, uploadTS, bill.RawText, string(bill.BillType),
		bill.Supplier, bill.Amount, billDate, bill.DueDate, periodStart, periodEnd,
		consumption, bill.AccountNumber, string(bill.Confidence), bill.NeedsManualReview(),
		nullText(bill.ExtractedData.Date), nullText(bill.ExtractedData.Amount), nullText(bill.ExtractedData.Supplier),
		nullText(bill.Checksum), nullText(bill.GCSURI),
	)
	if err != nil {
		return fmt.Errorf("SaveBill: inserting bill %s: %w", bill.ID, err)
	}
	return nil
}

// ListBillsByUser implements store.BillStore.
func (s *SQLiteStore) ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = ?
        ORDER BY upload_ts DESC, rowid DESC
        LIMIT ?`, userID, store.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListBillsByUser: %w", err)
	}
	return bills, nil
}

// ListBillsByUserAndType implements store.BillStore.
func (s *SQLiteStore) ListBillsByUserAndType(ctx context.Context, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = ? AND bill_type = ?
        ORDER BY upload_ts DESC, rowid DESC
        LIMIT ?`, userID, string(billType), store.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListBillsByUserAndType: %w", err)
	}
	return bills, nil
}

// FindBillByChecksum implements store.ChecksumFinder.
func (s *SQLiteStore) FindBillByChecksum(ctx context.Context, userID, checksum string) (*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = ? AND checksum_xxhash = ?
        ORDER BY upload_ts DESC, rowid DESC
        LIMIT 1`, userID, checksum)
	if err != nil {
		return nil, fmt.Errorf("FindBillByChecksum: %w", err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return bills[0], nil
}

func (s *SQLiteStore) queryBills(ctx context.Context, query string, args ...any) ([]*domain.BillRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}
	defer rows.Close()

	var bills []*domain.BillRecord
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bills: %w", err)
	}
	return bills, nil
}

func scanBill(rows *sql.Rows) (*domain.BillRecord, error) {
	var (
		bill                     domain.BillRecord
		billType, confidence     string
		uploadTS                 sql.NullInt64
		supplier, dueDate        sql.NullString
		account, billDate        sql.NullString
		periodStart, periodEnd   sql.NullString
		consumption              sql.NullString
		amount                   sql.NullFloat64
		exDate, exAmount, exSupp sql.NullString
		checksum, gcsURI         sql.NullString
	)
	err := rows.Scan(
		&bill.ID, &bill.UserID, &bill.Filename, &uploadTS, &bill.RawText, &billType,
		&supplier, &amount, &billDate, &dueDate, &periodStart, &periodEnd,
		&consumption, &account, &confidence,
		&exDate, &exAmount, &exSupp, &checksum, &gcsURI,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	bill.BillType = domain.BillType(billType)
	bill.Confidence = domain.Confidence(confidence)
	if uploadTS.Valid {
		bill.UploadTimestamp = time.Unix(0, uploadTS.Int64).UTC()
	}
	bill.Supplier = stringPtr(supplier)
	bill.DueDate = stringPtr(dueDate)
	bill.AccountNumber = stringPtr(account)
	if amount.Valid {
		bill.Amount = domain.Ptr(amount.Float64)
	}
	if billDate.Valid {
		d, err := civil.ParseDate(billDate.String)
		if err != nil {
			return nil, fmt.Errorf("scanning bill %s: bill_date: %w", bill.ID, err)
		}
		bill.BillDate = &d
	}
	if periodStart.Valid || periodEnd.Valid {
		bill.BillingPeriod = &domain.BillingPeriod{Start: periodStart.String, End: periodEnd.String}
	}
	if consumption.Valid {
		if err := json.Unmarshal([]byte(consumption.String), &bill.Consumption); err != nil {
			return nil, fmt.Errorf("scanning bill %s: consumption: %w", bill.ID, err)
		}
	}
	bill.ExtractedData = domain.ExtractedData{Date: exDate.String, Amount: exAmount.String, Supplier: exSupp.String}
	bill.Checksum = checksum.String
	bill.GCSURI = gcsURI.String
	return &bill, nil
}

func nullText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return domain.Ptr(s.String)
}
