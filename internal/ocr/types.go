// Package ocr provides document analyzers that turn an uploaded bill into
// recognized text lines.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoText is returned when a document yields no readable text.
var ErrNoText = errors.New("no readable text in document")

// DocumentAnalyzer recognizes the text lines of a document.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, document []byte) ([]string, error)
}

// Chain tries analyzers in order and returns the first non-empty result.
type Chain struct {
	analyzers []DocumentAnalyzer
}

// NewChain creates a Chain. Nil analyzers are skipped.
func NewChain(analyzers ...DocumentAnalyzer) *Chain {
	c := &Chain{}
	for _, a := range analyzers {
		if a != nil {
			c.analyzers = append(c.analyzers, a)
		}
	}
	return c
}

// AnalyzeDocument implements DocumentAnalyzer.
func (c *Chain) AnalyzeDocument(ctx context.Context, document []byte) ([]string, error) {
	if len(c.analyzers) == 0 {
		return nil, fmt.Errorf("AnalyzeDocument: no analyzers configured")
	}

	var errs []error
	for _, a := range c.analyzers {
		lines, err := a.AnalyzeDocument(ctx, document)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(nonEmpty(lines)) > 0 {
			return lines, nil
		}
		errs = append(errs, ErrNoText)
	}
	return nil, fmt.Errorf("AnalyzeDocument: %w", errors.Join(errs...))
}

func nonEmpty(lines []string) []string {
	var out []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Ensure Chain implements DocumentAnalyzer.
var _ DocumentAnalyzer = (*Chain)(nil)
