package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextAnalyzer reads the embedded text layer of a PDF. It does not
// recognize scanned images; chain it before a model-based analyzer.
type PDFTextAnalyzer struct{}

// NewPDFTextAnalyzer creates a PDFTextAnalyzer.
func NewPDFTextAnalyzer() *PDFTextAnalyzer {
	return &PDFTextAnalyzer{}
}

// AnalyzeDocument implements DocumentAnalyzer.
func (a *PDFTextAnalyzer) AnalyzeDocument(ctx context.Context, document []byte) (lines []string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("AnalyzeDocument: pdf reader crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("AnalyzeDocument: open pdf: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("AnalyzeDocument: pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page)...)
	}

	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// pageLines prefers row reconstruction and falls back to the plain text
// stream when rows cannot be read.
func pageLines(page pdf.Page) []string {
	var lines []string

	rows, err := page.GetTextByRow()
	if err == nil {
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) > 0 {
		return lines
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return nil
	}
	return nonEmpty(strings.Split(text, "\n"))
}

// Ensure PDFTextAnalyzer implements DocumentAnalyzer.
var _ DocumentAnalyzer = (*PDFTextAnalyzer)(nil)
