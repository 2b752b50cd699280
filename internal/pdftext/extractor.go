// Package pdftext turns indictment PDFs into clean text, reading the embedded
// text layer first and falling back to OCR for scanned documents.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// MinDirectChars is the direct-text length below which OCR takes over.
const MinDirectChars = 100

var (
	// ErrNotFound is returned when the PDF path does not exist. It also
	// matches fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("pdf not found: %w", fs.ErrNotExist)
	// ErrOCRUnavailable reports a missing OCR toolchain.
	ErrOCRUnavailable = errors.New("ocr unavailable")
)

// Method records which layer produced a document's text.
type Method string

const (
	MethodDirect Method = "direct"
	MethodOCR    Method = "ocr"
)

// Document is the result of a single extraction call.
type Document struct {
	Path        string   `json:"path"`
	RawText     string   `json:"raw_text"`
	CleanedText string   `json:"cleaned_text"`
	Method      Method   `json:"method"`
	Pages       int      `json:"pages"`
	Warnings    []string `json:"warnings,omitempty"`
}

func (d *Document) warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Options configures an Extractor. Zero values select the defaults.
type Options struct {
	UseOCR bool
	// MinChars overrides MinDirectChars when positive.
	MinChars  int
	TextLayer TextLayer
	// OCR defaults to the tesseract toolchain configured for Portuguese.
	OCR OCR
}

// Extractor holds no resources between calls and is safe for concurrent use.
type Extractor struct {
	useOCR       bool
	ocrAvailable bool
	minChars     int
	layer        TextLayer
	ocr          OCR
}

// New builds an Extractor. OCR availability is probed once here; when the
// toolchain is missing the extractor keeps working on the text layer alone.
func New(opts Options) *Extractor {
	e := &Extractor{
		useOCR:   opts.UseOCR,
		minChars: opts.MinChars,
		layer:    opts.TextLayer,
		ocr:      opts.OCR,
	}
	if e.minChars <= 0 {
		e.minChars = MinDirectChars
	}
	if e.layer == nil {
		e.layer = PDFTextLayer{}
	}
	if e.ocr == nil {
		e.ocr = NewTesseract("por")
	}
	e.ocrAvailable = e.ocr.Available()
	if e.useOCR && !e.ocrAvailable {
		log.Warn().Msg("OCR dependencies not found (pdftoppm, tesseract); scanned PDFs will yield little or no text")
	}
	return e
}

// OCRAvailable reports whether the OCR fallback can run.
func (e *Extractor) OCRAvailable() bool { return e.useOCR && e.ocrAvailable }

// ExtractText returns the cleaned text of the PDF at path.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := e.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	return doc.CleanedText, nil
}

// Extract reads the PDF at path. Only a missing file is an error; every other
// failure degrades to empty or partial text and is listed in Warnings.
func (e *Extractor) Extract(ctx context.Context, path string) (Document, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	doc := Document{Path: path, Method: MethodDirect}
	pages, err := e.layer.PageTexts(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("direct text extraction failed")
		doc.warn("direct extraction: %v", err)
		pages = nil
	}
	doc.Pages = len(pages)
	raw := joinPages(pages)

	if e.OCRAvailable() && tooShort(raw, e.minChars) {
		log.Info().Str("path", path).Int("chars", utf8.RuneCountInString(raw)).Msg("direct text insufficient; trying OCR")
		raw, doc.Pages = e.recognize(ctx, path, &doc)
		doc.Method = MethodOCR
	}

	doc.RawText = raw
	doc.CleanedText = Clean(raw)
	return doc, nil
}

func (e *Extractor) recognize(ctx context.Context, path string, doc *Document) (string, int) {
	dir, err := os.MkdirTemp("", "melkor-ocr-*")
	if err != nil {
		doc.warn("ocr temp dir: %v", err)
		return "", 0
	}
	defer os.RemoveAll(dir)

	images, err := e.ocr.Rasterize(ctx, path, dir)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("rasterize failed")
		doc.warn("ocr rasterize: %v", err)
		return "", 0
	}

	var b strings.Builder
	done := 0
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			doc.warn("ocr interrupted after %d of %d pages: %v", done, len(images), err)
			break
		}
		log.Info().Int("page", i+1).Int("pages", len(images)).Msg("processing page with OCR")
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("ocr page failed")
			doc.warn("ocr page %d: %v", i+1, err)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
		done++
	}
	return b.String(), done
}

func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

func tooShort(text string, min int) bool {
	return strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) < min
}
