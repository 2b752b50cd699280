package pdftext

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextLayer reads the embedded text of each page of a PDF.
type TextLayer interface {
	PageTexts(path string) ([]string, error)
}

// PDFTextLayer reads text operators directly from the PDF content streams.
// Scanned documents usually come back empty.
type PDFTextLayer struct{}

func (PDFTextLayer) PageTexts(path string) (pages []string, err error) {
	// The reader panics on some malformed xref tables and fonts.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read text layer: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
