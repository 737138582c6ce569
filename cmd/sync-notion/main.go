package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/app"
	"github.com/dvloznov/bill-intelligence/internal/config"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/notionsync"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	userID := flag.String("user", "", "User whose bills to sync (required)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	billStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreBackend).Msg("Failed to open bill store")
	}
	defer billStore.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	res, err := notionsync.SyncBills(ctx, billStore, notionClient, *notionDBID, *userID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d failed.\n", res.Created, res.Updated, res.Failed)
}
