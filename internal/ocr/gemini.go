package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

const transcriptionPrompt = "You are an OCR engine for Italian utility bills (luce, gas, acqua, telefono, internet, rifiuti).\n\n" +
	"Task:\n" +
	"- Transcribe ALL text printed in the attached document, in reading order.\n" +
	"- Keep numbers, dates, currency symbols and units (kWh, Smc, mc) exactly as printed.\n" +
	"- Do not translate, summarize or correct anything.\n\n" +
	"Output:\n" +
	"- A STRICT JSON array of strings, one string per printed line.\n" +
	"- Do NOT wrap the response in code fences.\n" +
	"- Output must begin with \"[\" and end with \"]\".\n"

// GeminiAnalyzer transcribes documents with a Gemini model. Client
// credentials and backend come from the standard GOOGLE_* environment
// variables.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates a Gemini client. An empty model uses
// DefaultModelName.
func NewGeminiAnalyzer(ctx context.Context, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAnalyzer: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

// AnalyzeDocument implements DocumentAnalyzer.
func (g *GeminiAnalyzer) AnalyzeDocument(ctx context.Context, document []byte) ([]string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcriptionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     document,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("AnalyzeDocument: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("AnalyzeDocument: empty response from model")
	}
	return parseLines(raw)
}

// parseLines decodes the model's JSON array of lines.
func parseLines(raw string) ([]string, error) {
	var lines []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &lines); err != nil {
		return nil, fmt.Errorf("parseLines: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	lines = nonEmpty(lines)
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// Ensure GeminiAnalyzer implements DocumentAnalyzer.
var _ DocumentAnalyzer = (*GeminiAnalyzer)(nil)
