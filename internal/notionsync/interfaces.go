package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// NotionService defines the Notion operations used by the sync.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// BillLister lists a user's stored bills, newest first.
type BillLister interface {
	ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error)
}
