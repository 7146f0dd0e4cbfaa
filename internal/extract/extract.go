// Package extract wraps the PDF rendering and vision-model collaborators
// behind a single document-granularity contract. Failures are isolated
// per level: a render error fails the document, a model error degrades
// to zero tags for the affected page.
package extract

import "context"

// PageFunc reports page progress during an extraction (1-based page
// number and total page count).
type PageFunc func(page, totalPages int)

// Options control a single document extraction.
type Options struct {
	Model string
	DPI   int
}

// Extractor turns a document on disk into an ordered list of per-page
// tag lists.
type Extractor interface {
	ExtractDocument(ctx context.Context, path string, opts Options, onPage PageFunc) ([][]string, error)
}
