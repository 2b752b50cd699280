package report

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// OutputPath returns a stable Markdown path under dir for the indictment at
// pdfPath: a slug of the file name plus a short hash of its absolute path.
func OutputPath(dir, pdfPath string) string {
	if strings.TrimSpace(dir) == "" {
		dir = "reports"
	}
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	slug := slugify(base)
	if slug == "" {
		slug = "denuncia"
	}
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		abs = pdfPath
	}
	h := sha256.Sum256([]byte(abs))
	return filepath.Join(dir, slug+"-"+hex.EncodeToString(h[:])[:12]+".md")
}

// slugify lower-cases s, strips accents and joins words with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
