package pipeline_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/engine"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/pipeline"
	"github.com/dvloznov/bill-intelligence/internal/store/inmemory"
)

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte("mock pdf data"), nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return "mock-file.pdf"
}

// MockAnalyzer returns fixed lines for every document.
type MockAnalyzer struct {
	Lines []string
	Calls int
}

func (m *MockAnalyzer) AnalyzeDocument(ctx context.Context, document []byte) ([]string, error) {
	m.Calls++
	return m.Lines, nil
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

func newEngine(analyzer *MockAnalyzer, s *inmemory.Store) *engine.Engine {
	return engine.New(engine.Config{
		Analyzer: analyzer,
		Store:    s,
		Now:      func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) },
	})
}

func TestBillIngestionPipeline_ProcessesAndStores(t *testing.T) {
	ctx := quietContext()
	s := inmemory.NewStore()
	analyzer := &MockAnalyzer{Lines: []string{"Eni gas naturale", "Totale da pagare € 64,20"}}
	storage := &MockStorageService{
		ExtractFilenameFromGCSURIFunc: func(string) string { return "eni.pdf" },
	}

	p := pipeline.NewBillIngestionPipeline(storage, s, newEngine(analyzer, s))
	state, err := pipeline.IngestBillFromGCS(ctx, p, "user-1", "gs://bills/users/user-1/20240615T100000_eni.pdf")
	require.NoError(t, err)

	require.NotNil(t, state.Bill)
	assert.Nil(t, state.Duplicate)
	assert.Equal(t, "eni.pdf", state.Filename)
	assert.Equal(t, domain.BillTypeGas, state.Bill.BillType)
	assert.Equal(t, "gs://bills/users/user-1/20240615T100000_eni.pdf", state.Bill.GCSURI)
	assert.Equal(t, engine.Checksum([]byte("mock pdf data")), state.Checksum)
	assert.Equal(t, state.Checksum, state.Bill.Checksum)

	saved, err := s.ListBillsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, state.Bill.ID, saved[0].ID)
}

func TestBillIngestionPipeline_SkipsDuplicates(t *testing.T) {
	ctx := quietContext()
	s := inmemory.NewStore()
	require.NoError(t, s.SaveBill(ctx, &domain.BillRecord{
		ID:       "existing",
		UserID:   "user-1",
		Checksum: engine.Checksum([]byte("mock pdf data")),
	}))
	analyzer := &MockAnalyzer{Lines: []string{"ENEL"}}

	p := pipeline.NewBillIngestionPipeline(&MockStorageService{}, s, newEngine(analyzer, s))
	state, err := pipeline.IngestBillFromGCS(ctx, p, "user-1", "gs://bills/a.pdf")
	require.NoError(t, err)

	require.NotNil(t, state.Duplicate)
	assert.Equal(t, "existing", state.Bill.ID)
	assert.Zero(t, analyzer.Calls)

	// Another user uploading the same bytes is not a duplicate.
	state, err = pipeline.IngestBillFromGCS(ctx, p, "user-2", "gs://bills/a.pdf")
	require.NoError(t, err)
	assert.Nil(t, state.Duplicate)
	assert.Equal(t, 1, analyzer.Calls)
}

func TestBillIngestionPipeline_FetchFailure(t *testing.T) {
	storage := &MockStorageService{
		FetchFromGCSFunc: func(context.Context, string) ([]byte, error) {
			return nil, errors.New("object not found")
		},
	}
	s := inmemory.NewStore()
	p := pipeline.NewBillIngestionPipeline(storage, s, newEngine(&MockAnalyzer{}, s))

	_, err := pipeline.IngestBillFromGCS(quietContext(), p, "user-1", "gs://bills/missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 1 failed")
	assert.Contains(t, err.Error(), "object not found")
}

type failingStep struct{ calls *int }

func (f failingStep) Execute(context.Context, *pipeline.PipelineState) error {
	*f.calls++
	return errors.New("boom")
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	calls := 0
	p := pipeline.NewPipeline(failingStep{&calls}, failingStep{&calls})

	err := p.Execute(context.Background(), &pipeline.PipelineState{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "pipeline step 1 failed: boom", err.Error())
}
