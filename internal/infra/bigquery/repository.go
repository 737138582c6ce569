package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

// BigQueryBillRepository stores bills in a BigQuery table.
type BigQueryBillRepository struct {
	client *bigquery.Client
	ds     Dataset
}

var _ store.Store = (*BigQueryBillRepository)(nil)

// NewBigQueryBillRepository creates a repository with its own client.
func NewBigQueryBillRepository(ctx context.Context, projectID, datasetID string) (*BigQueryBillRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryBillRepository: creating client: %w", err)
	}
	return &BigQueryBillRepository{
		client: client,
		ds:     Dataset{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client.
func (r *BigQueryBillRepository) Close() error {
	return r.client.Close()
}

// SaveBill implements store.BillStore.
func (r *BigQueryBillRepository) SaveBill(ctx context.Context, bill *domain.BillRecord) error {
	return InsertBillWithClient(ctx, r.client, r.ds, bill)
}

// ListBillsByUser implements store.BillStore.
func (r *BigQueryBillRepository) ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error) {
	return ListBillsWithClient(ctx, r.client, r.ds, userID, "", store.NormalizeLimit(limit))
}

// ListBillsByUserAndType implements store.BillStore.
func (r *BigQueryBillRepository) ListBillsByUserAndType(ctx context.Context, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error) {
	return ListBillsWithClient(ctx, r.client, r.ds, userID, billType, store.NormalizeLimit(limit))
}

// FindBillByChecksum implements store.ChecksumFinder.
func (r *BigQueryBillRepository) FindBillByChecksum(ctx context.Context, userID, checksum string) (*domain.BillRecord, error) {
	return FindBillByChecksumWithClient(ctx, r.client, r.ds, userID, checksum)
}
