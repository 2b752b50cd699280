package pdftext

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

type fakeLayer struct {
	pages []string
	err   error
}

func (f fakeLayer) PageTexts(string) ([]string, error) { return f.pages, f.err }

type fakeOCR struct {
	available  bool
	pages      []string
	failPage   int
	rasterized int
	recognized int
}

func (f *fakeOCR) Available() bool { return f.available }

func (f *fakeOCR) Rasterize(_ context.Context, _ string, dir string) ([]string, error) {
	f.rasterized++
	out := make([]string, len(f.pages))
	for i := range f.pages {
		out[i] = filepath.Join(dir, "page-"+string(rune('1'+i))+".png")
	}
	return out, nil
}

func (f *fakeOCR) Recognize(_ context.Context, img string) (string, error) {
	f.recognized++
	base := strings.TrimSuffix(filepath.Base(img), ".png")
	idx := int(base[len(base)-1] - '1')
	if f.failPage == idx+1 {
		return "", errors.New("boom")
	}
	return f.pages[idx], nil
}

func touchPDF(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "denuncia.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(Options{TextLayer: fakeLayer{}, OCR: &fakeOCR{}})
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected error to match fs.ErrNotExist")
	}
}

func TestExtract_LongDirectTextSkipsOCR(t *testing.T) {
	long := strings.Repeat("O denunciado subtraiu o veículo da vítima. ", 5)
	ocr := &fakeOCR{available: true, pages: []string{"from ocr"}}
	e := New(Options{UseOCR: true, TextLayer: fakeLayer{pages: []string{long}}, OCR: ocr})

	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ocr.rasterized != 0 || ocr.recognized != 0 {
		t.Fatalf("OCR must not run for long direct text; rasterized=%d recognized=%d", ocr.rasterized, ocr.recognized)
	}
	if doc.Method != MethodDirect {
		t.Fatalf("expected direct method, got %s", doc.Method)
	}
	if doc.RawText != long+"\n\n" {
		t.Fatalf("unexpected raw text: %q", doc.RawText)
	}
}

func TestExtract_ShortTextReplacedByOCR(t *testing.T) {
	ocr := &fakeOCR{available: true, pages: []string{"PRIMEIRA PAGINA", "SEGUNDA PAGINA"}}
	e := New(Options{UseOCR: true, TextLayer: fakeLayer{pages: []string{"abc"}}, OCR: ocr})

	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Method != MethodOCR {
		t.Fatalf("expected OCR method, got %s", doc.Method)
	}
	if strings.Contains(doc.RawText, "abc") {
		t.Fatalf("direct text must be discarded, got %q", doc.RawText)
	}
	if doc.RawText != "PRIMEIRA PAGINA\n\nSEGUNDA PAGINA\n\n" {
		t.Fatalf("unexpected OCR text: %q", doc.RawText)
	}
	if doc.CleanedText != "PRIMEIRA PAGINA\n\nSEGUNDA PAGINA" {
		t.Fatalf("unexpected cleaned text: %q", doc.CleanedText)
	}
	if doc.Pages != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.Pages)
	}
}

func TestExtract_BlankDirectTextTriggersOCR(t *testing.T) {
	ocr := &fakeOCR{available: true, pages: []string{"texto"}}
	blank := strings.Repeat(" \n", 80)
	e := New(Options{UseOCR: true, TextLayer: fakeLayer{pages: []string{blank}}, OCR: ocr})
	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Method != MethodOCR || doc.CleanedText != "texto" {
		t.Fatalf("expected OCR text, got method=%s text=%q", doc.Method, doc.CleanedText)
	}
}

func TestExtract_OCRUnavailableKeepsDirectText(t *testing.T) {
	ocr := &fakeOCR{available: false}
	e := New(Options{UseOCR: true, TextLayer: fakeLayer{pages: []string{"curto"}}, OCR: ocr})
	if e.OCRAvailable() {
		t.Fatalf("expected OCR to be unavailable")
	}
	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.CleanedText != "curto" || doc.Method != MethodDirect {
		t.Fatalf("expected direct fallback, got %q (%s)", doc.CleanedText, doc.Method)
	}
	if ocr.rasterized != 0 {
		t.Fatalf("unavailable OCR must not be invoked")
	}
}

func TestExtract_OCRDisabled(t *testing.T) {
	ocr := &fakeOCR{available: true, pages: []string{"ocr"}}
	e := New(Options{UseOCR: false, TextLayer: fakeLayer{pages: []string{"curto"}}, OCR: ocr})
	doc, _ := e.Extract(context.Background(), touchPDF(t))
	if doc.CleanedText != "curto" || ocr.rasterized != 0 {
		t.Fatalf("OCR disabled: expected direct text only, got %q", doc.CleanedText)
	}
}

func TestExtract_DirectFailureDegradesToEmpty(t *testing.T) {
	e := New(Options{TextLayer: fakeLayer{err: errors.New("bad xref")}, OCR: &fakeOCR{}})
	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("direct failure must not be fatal: %v", err)
	}
	if doc.CleanedText != "" {
		t.Fatalf("expected empty text, got %q", doc.CleanedText)
	}
	if len(doc.Warnings) != 1 || !strings.Contains(doc.Warnings[0], "bad xref") {
		t.Fatalf("expected warning about direct failure, got %v", doc.Warnings)
	}
}

func TestExtract_OCRPageFailureIsPartial(t *testing.T) {
	ocr := &fakeOCR{available: true, pages: []string{"um", "dois", "tres"}, failPage: 2}
	e := New(Options{UseOCR: true, TextLayer: fakeLayer{}, OCR: ocr})
	doc, err := e.Extract(context.Background(), touchPDF(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.CleanedText != "um\n\ntres" {
		t.Fatalf("expected partial OCR text, got %q", doc.CleanedText)
	}
	if doc.Pages != 2 || len(doc.Warnings) != 1 {
		t.Fatalf("expected 2 pages and 1 warning, got %d and %v", doc.Pages, doc.Warnings)
	}
}

func TestPDFTextLayer_ReadsGeneratedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gerado.pdf")
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(40, 10, "DENUNCIA CONTRA O REU")
	pdf.AddPage()
	pdf.Cell(40, 10, "SEGUNDA FOLHA")
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	pages, err := PDFTextLayer{}.PageTexts(path)
	if err != nil {
		t.Fatalf("page texts: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if !strings.Contains(pages[0], "DENUNCIA") {
		t.Fatalf("expected first page text, got %q", pages[0])
	}
}

func TestPDFTextLayer_GarbageIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lixo.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (PDFTextLayer{}).PageTexts(path); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestSortByPageNumber(t *testing.T) {
	in := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
	sortByPageNumber(in)
	want := []string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}
	for i := range want {
		if in[i] != want[i] {
			t.Fatalf("got %v, want %v", in, want)
		}
	}
}

func TestTesseract_UnavailableWithoutBinaries(t *testing.T) {
	tt := &Tesseract{}
	if tt.Available() {
		t.Fatalf("expected unavailable")
	}
	if _, err := tt.Rasterize(context.Background(), "x.pdf", t.TempDir()); !errors.Is(err, ErrOCRUnavailable) {
		t.Fatalf("expected ErrOCRUnavailable, got %v", err)
	}
}
