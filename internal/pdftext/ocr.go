package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// OCR rasterizes PDF pages and recognizes text on each page image.
type OCR interface {
	// Available reports whether the OCR toolchain can run at all.
	Available() bool
	// Rasterize renders every page of pdfPath into dir and returns the image
	// paths in page order.
	Rasterize(ctx context.Context, pdfPath, dir string) ([]string, error)
	// Recognize returns the text found on a single page image.
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Tesseract drives the poppler pdftoppm and tesseract command-line tools.
// Paths are resolved once by NewTesseract; empty paths mean unavailable.
type Tesseract struct {
	PdftoppmPath  string
	TesseractPath string
	Language      string
	DPI           int
}

// NewTesseract looks up both binaries on PATH.
func NewTesseract(language string) *Tesseract {
	t := &Tesseract{Language: language, DPI: 300}
	if p, err := exec.LookPath("pdftoppm"); err == nil {
		t.PdftoppmPath = p
	}
	if p, err := exec.LookPath("tesseract"); err == nil {
		t.TesseractPath = p
	}
	return t
}

func (t *Tesseract) Available() bool {
	return t != nil && t.PdftoppmPath != "" && t.TesseractPath != ""
}

func (t *Tesseract) Rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	if !t.Available() {
		return nil, ErrOCRUnavailable
	}
	dpi := t.DPI
	if dpi <= 0 {
		dpi = 300
	}
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, t.PdftoppmPath, "-r", strconv.Itoa(dpi), "-png", pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sortByPageNumber(images)
	return images, nil
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !t.Available() {
		return "", ErrOCRUnavailable
	}
	lang := t.Language
	if lang == "" {
		lang = "por"
	}
	cmd := exec.CommandContext(ctx, t.TesseractPath, imagePath, "stdout", "-l", lang)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// sortByPageNumber orders pdftoppm outputs (page-1.png, page-02.png, ...) by
// their numeric suffix; zero padding width depends on the page count.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
