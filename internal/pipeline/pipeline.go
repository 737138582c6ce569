// Package pipeline ingests uploaded bill documents step by step.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID   string
	GCSURI   string
	Filename string

	Document []byte
	Checksum string

	// Duplicate is the user's existing bill with the same checksum, if any.
	Duplicate *domain.BillRecord
	Bill      *domain.BillRecord
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewBillIngestionPipeline creates the fetch, checksum and process pipeline.
// finder may be nil, which disables duplicate detection.
func NewBillIngestionPipeline(storage StorageService, finder store.ChecksumFinder, processor DocumentProcessor) *Pipeline {
	return NewPipeline(
		&FetchDocumentStep{Storage: storage},
		&ChecksumStep{Finder: finder},
		&ProcessDocumentStep{Processor: processor},
	)
}

// IngestBillFromGCS runs p for one uploaded document and returns the
// resulting state.
func IngestBillFromGCS(ctx context.Context, p *Pipeline, userID, gcsURI string) (*PipelineState, error) {
	state := &PipelineState{UserID: userID, GCSURI: gcsURI}
	if err := p.Execute(ctx, state); err != nil {
		return state, fmt.Errorf("IngestBillFromGCS: %w", err)
	}
	return state, nil
}
