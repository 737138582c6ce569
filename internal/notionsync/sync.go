// Package notionsync mirrors stored bills into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

// Result counts what a sync did (or would do, on a dry run).
type Result struct {
	Created int
	Updated int
	Failed  int
}

// SyncBills creates a Notion page for every bill of userID that has none and
// updates the pages of bills already mirrored. Pages are matched through the
// Bill ID property. Individual page failures are logged and counted; the
// sync carries on.
func SyncBills(ctx context.Context, bills BillLister, notionClient NotionService, notionDBID, userID string, dryRun bool) (Result, error) {
	log := logger.WithUser(logger.FromContext(ctx), userID)
	var res Result

	log.Info().Bool("dry_run", dryRun).Msg("Starting bill sync to Notion")

	records, err := bills.ListBillsByUser(ctx, userID, store.StatsHistoryLimit)
	if err != nil {
		return res, fmt.Errorf("SyncBills: listing bills: %w", err)
	}

	pages, err := queryUserPages(ctx, notionClient, notionDBID, userID)
	if err != nil {
		return res, fmt.Errorf("SyncBills: %w", err)
	}

	pageByBill := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := extractBillID(page); id != "" {
			pageByBill[id] = string(page.ID)
		}
	}

	log.Info().
		Int("bill_count", len(records)).
		Int("notion_page_count", len(pageByBill)).
		Msg("Loaded bills and existing Notion pages")

	for _, bill := range records {
		pageID, exists := pageByBill[bill.ID]

		if dryRun {
			if exists {
				log.Info().Str("bill_id", bill.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("bill_id", bill.ID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := BillToNotionProperties(bill)
		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("bill_id", bill.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("bill_id", bill.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("bill_id", bill.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Bool("dry_run", dryRun).
		Msg("Bill sync to Notion completed")

	return res, nil
}

// queryUserPages pages through the database entries whose User property is
// userID.
func queryUserPages(ctx context.Context, notionClient NotionService, databaseID, userID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: PropUser,
				RichText: &notionapi.TextFilterCondition{Equals: userID},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryUserPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
