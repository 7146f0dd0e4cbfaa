package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const extractionPrompt = `You are an expert in reading engineering P&ID (Piping and Instrumentation Diagrams),
electrical diagrams, or general plant layout drawings.
Your task is to identify and extract ALL component tags AND pipeline tags from the provided image.

Component tags are typically alphanumeric identifiers for equipment or instruments.
Examples: 'P-101A', 'XV-002', 'TK-5003.B', 'FIC-301', 'LT-500', 'BV-0007', 'NRV-0003', '20-V-010'.
These often start with 2-4 letters (or a number-letter combination like 20-V), followed by a hyphen and numbers/letters.

Pipeline tags (also known as line numbers) identify specific pipelines. They have a more complex structure.
Examples: '13-M2-0041-1.5"-OD-91440X', '01-P10A-0002-DN50-CS-L150', '100-HC-001-4"-SS316-INS01', '1-GAS-LINE-001-SPEC'.
These often start with numbers, include segments for area/service, sequence number,
and often include size (e.g., 1.5", DN50, 4"), material codes, and other specifiers, all typically separated by hyphens.

Tags can be oriented horizontally or vertically. They are usually placed near
their respective components or along pipelines on the drawing. Distinguish them from other text like
dimensions, notes, or titles unless those clearly follow a component or pipeline tag format.

Pay close attention to:
1. Both horizontal and vertical text orientations.
2. Tags that might be slightly rotated or curved along a pipeline.
3. Tags that are tightly grouped with other tags or text.
4. Ensure you capture the full tag, including all prefixes, suffixes, separators (hyphens, dots, quotes for inches).

Please return ALL extracted tags (both component and pipeline) as a single JSON list of strings.
For example: ["P-101A", "13-M2-0041-1.5\"-OD-91440X", "BV-0007", "NRV-0003", "20-V-010"]
If no tags are found, return an empty list: [].`

// GeminiExtractor extracts tags from rendered drawing pages through the
// Gemini vision API. The model's reply carries no guaranteed shape, so
// page extraction is best-effort: any call or parse failure counts as
// zero tags for that page.
type GeminiExtractor struct {
	client *genai.Client
}

var _ Extractor = (*GeminiExtractor)(nil)

func NewGeminiExtractor(ctx context.Context, apiKey string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiExtractor{client: cl}, nil
}

func (g *GeminiExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ExtractDocument renders every page of the PDF at path and queries
// Gemini page by page. A render failure fails the document; page-level
// model failures do not.
func (g *GeminiExtractor) ExtractDocument(ctx context.Context, path string, opts Options, onPage PageFunc) ([][]string, error) {
	pages, err := renderPages(path, opts.DPI)
	if err != nil {
		return nil, err
	}

	tagsByPage := make([][]string, 0, len(pages))
	for i, png := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction aborted: %w", err)
		}
		if onPage != nil {
			onPage(i+1, len(pages))
		}
		tagsByPage = append(tagsByPage, g.extractPage(ctx, png, opts.Model))
	}
	return tagsByPage, nil
}

func (g *GeminiExtractor) extractPage(ctx context.Context, png []byte, model string) []string {
	m := g.client.GenerativeModel(model)
	resp, err := m.GenerateContent(ctx, genai.Text(extractionPrompt), genai.ImageData("png", png))
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("gemini call failed, counting page as empty")
		return nil
	}
	raw := responseText(resp)
	if raw == "" {
		log.Warn().Str("model", model).Msg("gemini returned no text part")
		return nil
	}
	return parseTagList(raw)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
