package extract

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// renderPages rasterizes every page of the PDF at the given DPI and
// returns them as PNG bytes in page order. Any failure aborts the whole
// document; the caller decides what a failed document means for the job.
func renderPages(path string, dpi int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		png, err := doc.ImagePNG(n, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}
		pages = append(pages, png)
	}
	return pages, nil
}

// PageCount reports the page count of the PDF at path without rendering
// anything. Used by upload validation.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
