// Package postgres stores bill records in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS bills (
    seq BIGSERIAL,
    bill_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    upload_ts TIMESTAMPTZ,
    extracted_text TEXT NOT NULL,
    bill_type TEXT NOT NULL,
    supplier TEXT,
    amount DOUBLE PRECISION,
    bill_date DATE,
    due_date TEXT,
    billing_period_start TEXT,
    billing_period_end TEXT,
    consumption JSONB,
    account_number TEXT,
    extraction_confidence TEXT NOT NULL,
    needs_manual_review BOOLEAN NOT NULL,
    extracted_date TEXT,
    extracted_amount TEXT,
    extracted_supplier TEXT,
    checksum_xxhash TEXT,
    gcs_uri TEXT
);

CREATE INDEX IF NOT EXISTS idx_bills_user_upload ON bills (user_id, upload_ts DESC);
CREATE INDEX IF NOT EXISTS idx_bills_user_checksum ON bills (user_id, checksum_xxhash);
`

const selectColumns = `
    bill_id, user_id, filename, upload_ts, extracted_text, bill_type,
    supplier, amount, bill_date, due_date, billing_period_start, billing_period_end,
    consumption, account_number, extraction_confidence,
    extracted_date, extracted_amount, extracted_supplier, checksum_xxhash, gcs_uri`

const orderNewestFirst = `ORDER BY upload_ts DESC NULLS LAST, seq DESC`

var _ store.Store = (*PostgresBillStore)(nil)

// PostgresBillStore implements store.Store on a pgx connection pool.
type PostgresBillStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*PostgresBillStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.Connect: ping: %w", err)
	}
	return NewPostgresBillStore(pool), nil
}

// NewPostgresBillStore wraps an existing pool.
func NewPostgresBillStore(pool *pgxpool.Pool) *PostgresBillStore {
	return &PostgresBillStore{pool: pool}
}

// Migrate creates the bills table and its indexes when missing.
func (s *PostgresBillStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("Migrate: creating bills table: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresBillStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveBill implements store.BillStore.
func (s *PostgresBillStore) SaveBill(ctx context.Context, bill *domain.BillRecord) error {
	if bill.ID == "" {
		return errors.New("SaveBill: bill has no id")
	}
	args, err := insertArgs(bill)
	if err != nil {
		return fmt.Errorf("SaveBill: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO bills (
            bill_id, user_id, filename, upload_ts, extracted_text, bill_type,
            supplier, amount, bill_date, due_date, billing_period_start, billing_period_end,
            consumption, account_number, extraction_confidence, needs_manual_review,
            extracted_date, extracted_amount, extracted_supplier, checksum_xxhash, gcs_uri
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		args...)
	if err != nil {
		return fmt.Errorf("SaveBill: inserting bill %s: %w", bill.ID, err)
	}
	return nil
}

// ListBillsByUser implements store.BillStore.
func (s *PostgresBillStore) ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = $1
        `+orderNewestFirst+`
        LIMIT $2`, userID, store.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListBillsByUser: %w", err)
	}
	return bills, nil
}

// ListBillsByUserAndType implements store.BillStore.
func (s *PostgresBillStore) ListBillsByUserAndType(ctx context.Context, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = $1 AND bill_type = $2
        `+orderNewestFirst+`
        LIMIT $3`, userID, string(billType), store.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListBillsByUserAndType: %w", err)
	}
	return bills, nil
}

// FindBillByChecksum implements store.ChecksumFinder.
func (s *PostgresBillStore) FindBillByChecksum(ctx context.Context, userID, checksum string) (*domain.BillRecord, error) {
	bills, err := s.queryBills(ctx, `
        SELECT`+selectColumns+`
        FROM bills
        WHERE user_id = $1 AND checksum_xxhash = $2
        `+orderNewestFirst+`
        LIMIT 1`, userID, checksum)
	if err != nil {
		return nil, fmt.Errorf("FindBillByChecksum: %w", err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return bills[0], nil
}

func (s *PostgresBillStore) queryBills(ctx context.Context, query string, args ...any) ([]*domain.BillRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// insertArgs returns the positional arguments of the insert statement.
func insertArgs(bill *domain.BillRecord) ([]any, error) {
	var uploadTS *time.Time
	if !bill.UploadTimestamp.IsZero() {
		uploadTS = &bill.UploadTimestamp
	}
	var billDate *time.Time
	if bill.BillDate != nil {
		d := bill.BillDate.In(time.UTC)
		billDate = &d
	}
	var periodStart, periodEnd *string
	if bill.BillingPeriod != nil {
		periodStart = &bill.BillingPeriod.Start
		periodEnd = &bill.BillingPeriod.End
	}
	var consumption []byte
	if len(bill.Consumption) > 0 {
		data, err := json.Marshal(bill.Consumption)
		if err != nil {
			return nil, fmt.Errorf("marshal consumption: %w", err)
		}
		consumption = data
	}

	return []any{
		bill.ID, bill.UserID, bill.Filename, uploadTS, bill.RawText, string(bill.BillType),
		bill.Supplier, bill.Amount, billDate, bill.DueDate, periodStart, periodEnd,
		consumption, bill.AccountNumber, string(bill.Confidence), bill.NeedsManualReview(),
		textOrNil(bill.ExtractedData.Date), textOrNil(bill.ExtractedData.Amount), textOrNil(bill.ExtractedData.Supplier),
		textOrNil(bill.Checksum), textOrNil(bill.GCSURI),
	}, nil
}

func scanBill(rows pgx.Rows) (*domain.BillRecord, error) {
	var (
		bill                     domain.BillRecord
		billType, confidence     string
		uploadTS, billDate       *time.Time
		periodStart, periodEnd   *string
		consumption              []byte
		exDate, exAmount, exSupp *string
		checksum, gcsURI         *string
	)
	err := rows.Scan(
		&bill.ID, &bill.UserID, &bill.Filename, &uploadTS, &bill.RawText, &billType,
		&bill.Supplier, &bill.Amount, &billDate, &bill.DueDate, &periodStart, &periodEnd,
		&consumption, &bill.AccountNumber, &confidence,
		&exDate, &exAmount, &exSupp, &checksum, &gcsURI,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	bill.BillType = domain.BillType(billType)
	bill.Confidence = domain.Confidence(confidence)
	if uploadTS != nil {
		bill.UploadTimestamp = uploadTS.UTC()
	}
	if billDate != nil {
		bill.BillDate = domain.Ptr(civil.DateOf(*billDate))
	}
	if periodStart != nil || periodEnd != nil {
		bill.BillingPeriod = &domain.BillingPeriod{Start: deref(periodStart), End: deref(periodEnd)}
	}
	if len(consumption) > 0 {
		if err := json.Unmarshal(consumption, &bill.Consumption); err != nil {
			return nil, fmt.Errorf("scanning bill %s: consumption: %w", bill.ID, err)
		}
	}
	bill.ExtractedData = domain.ExtractedData{Date: deref(exDate), Amount: deref(exAmount), Supplier: deref(exSupp)}
	bill.Checksum = deref(checksum)
	bill.GCSURI = deref(gcsURI)
	return &bill, nil
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
