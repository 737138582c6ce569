package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	AnalyzeDocumentFunc func(ctx context.Context, document []byte) ([]string, error)
	calls               int
}

func (m *mockAnalyzer) AnalyzeDocument(ctx context.Context, document []byte) ([]string, error) {
	m.calls++
	return m.AnalyzeDocumentFunc(ctx, document)
}

func returning(lines []string, err error) *mockAnalyzer {
	return &mockAnalyzer{AnalyzeDocumentFunc: func(context.Context, []byte) ([]string, error) {
		return lines, err
	}}
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	failing := returning(nil, errors.New("not a pdf"))
	blank := returning([]string{"", "  "}, nil)
	good := returning([]string{"ENEL Energia", "Totale: €45,30"}, nil)
	unused := returning([]string{"never"}, nil)

	lines, err := NewChain(failing, nil, blank, good, unused).AnalyzeDocument(context.Background(), []byte("%PDF"))

	require.NoError(t, err)
	assert.Equal(t, []string{"ENEL Energia", "Totale: €45,30"}, lines)
	assert.Equal(t, 0, unused.calls)
}

func TestChain_AllFail(t *testing.T) {
	_, err := NewChain(returning(nil, errors.New("boom")), returning(nil, nil)).
		AnalyzeDocument(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoText)
	assert.ErrorContains(t, err, "boom")
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain().AnalyzeDocument(context.Background(), nil)
	assert.Error(t, err)
}

func TestPDFTextAnalyzer_RejectsNonPDF(t *testing.T) {
	_, err := NewPDFTextAnalyzer().AnalyzeDocument(context.Background(), []byte("this is not a pdf"))
	assert.Error(t, err)
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"plain array", `["ENEL", "Totale: €45,30"]`, []string{"ENEL", "Totale: €45,30"}, false},
		{"fenced", "```json\n[\"Scadenza: 25/03/2024\"]\n```", []string{"Scadenza: 25/03/2024"}, false},
		{"surrounding prose", "Here you go: [\"A2A\", \"\"] done", []string{"A2A"}, false},
		{"empty array", "[]", nil, true},
		{"not json", "sorry, I cannot read this", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLines(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
