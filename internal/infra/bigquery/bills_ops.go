package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

const billsTable = "bills"

// Dataset names the BigQuery dataset that holds the bills table.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) billsRef() string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, billsTable)
}

const billColumns = `
			bill_id,
			user_id,
			filename,
			upload_ts,
			extracted_text,
			bill_type,
			supplier,
			amount,
			bill_date,
			due_date,
			billing_period_start,
			billing_period_end,
			consumption,
			account_number,
			extraction_confidence,
			needs_manual_review,
			extracted_date,
			extracted_amount,
			extracted_supplier,
			checksum_xxhash,
			gcs_uri`

// listBillsQuery returns the list query for a user, optionally filtered by
// bill type.
func listBillsQuery(ds Dataset, byType bool) string {
	filter := ""
	if byType {
		filter = " AND bill_type = @bill_type"
	}
	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id%s
		ORDER BY upload_ts DESC
		LIMIT @limit
	`, billColumns, ds.billsRef(), filter)
}

func checksumQuery(ds Dataset) string {
	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND checksum_xxhash = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, billColumns, ds.billsRef())
}

// InsertBillWithClient inserts one bill using the provided BigQuery client.
func InsertBillWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, bill *domain.BillRecord) error {
	row, err := BillToRow(bill)
	if err != nil {
		return fmt.Errorf("InsertBillWithClient: %w", err)
	}

	inserter := client.Dataset(ds.DatasetID).Table(billsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertBillWithClient: inserting bill %s: %w", bill.ID, err)
	}
	return nil
}

// ListBillsWithClient lists up to limit bills of a user, newest first. An
// empty billType lists every type.
func ListBillsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error) {
	q := client.Query(listBillsQuery(ds, billType != ""))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: limit},
	}
	if billType != "" {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: "bill_type", Value: string(billType)})
	}

	bills, err := readBills(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListBillsWithClient: %w", err)
	}
	return bills, nil
}

// FindBillByChecksumWithClient returns the newest bill of a user with the
// given checksum, or nil if there is none.
func FindBillByChecksumWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, checksum string) (*domain.BillRecord, error) {
	q := client.Query(checksumQuery(ds))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "checksum", Value: checksum},
	}

	bills, err := readBills(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindBillByChecksumWithClient: %w", err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return bills[0], nil
}

func readBills(ctx context.Context, q *bigquery.Query) ([]*domain.BillRecord, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var bills []*domain.BillRecord
	for {
		var row BillRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		bill, err := RowToBill(&row)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}
