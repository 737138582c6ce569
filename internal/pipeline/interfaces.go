package pipeline

import (
	"context"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// StorageService reads uploaded documents.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// DocumentProcessor turns document bytes into a stored bill record.
// *engine.Engine implements it.
type DocumentProcessor interface {
	RecordFromDocument(ctx context.Context, document []byte, filename, userID string) *domain.BillRecord
	Save(ctx context.Context, bill *domain.BillRecord) error
}
