package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/bill-intelligence/internal/engine"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/metrics"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

// Step 1: FetchDocumentStep downloads the document from GCS.
type FetchDocumentStep struct {
	Storage StorageService
}

func (s *FetchDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Storage == nil {
		return errors.New("FetchDocumentStep: no storage configured")
	}
	doc, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("FetchDocumentStep: %w", err)
	}
	state.Document = doc
	if state.Filename == "" {
		state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.GCSURI)
	}
	return nil
}

// Step 2: ChecksumStep hashes the document and looks for a bill the user
// already uploaded with the same content.
type ChecksumStep struct {
	Finder store.ChecksumFinder
}

func (s *ChecksumStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Checksum = engine.Checksum(state.Document)
	if s.Finder == nil {
		return nil
	}

	existing, err := s.Finder.FindBillByChecksum(ctx, state.UserID, state.Checksum)
	if err != nil {
		return fmt.Errorf("ChecksumStep: %w", err)
	}
	if existing != nil {
		metrics.DuplicateDocuments.Inc()
		log := logger.WithUser(logger.FromContext(ctx), state.UserID)
		log.Info().
			Str("checksum", state.Checksum).
			Str("existing_bill_id", existing.ID).
			Msg("Document already processed, skipping")
		state.Duplicate = existing
	}
	return nil
}

// Step 3: ProcessDocumentStep extracts and saves the bill unless it is a
// duplicate.
type ProcessDocumentStep struct {
	Processor DocumentProcessor
}

func (s *ProcessDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Duplicate != nil {
		state.Bill = state.Duplicate
		return nil
	}

	bill := s.Processor.RecordFromDocument(ctx, state.Document, state.Filename, state.UserID)
	bill.GCSURI = state.GCSURI
	if err := s.Processor.Save(ctx, bill); err != nil {
		return fmt.Errorf("ProcessDocumentStep: %w", err)
	}
	state.Bill = bill
	return nil
}
