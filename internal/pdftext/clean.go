package pdftext

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[\p{Zs}\t\f\v]+`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
	pageNumberLine  = regexp.MustCompile(`^\d+$`)
)

// inlineBoilerplate is removed wherever it appears inside a line. Patterns
// ending in .* consume the rest of the line.
var inlineBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`Página \d+ de \d+`),
	regexp.MustCompile(`Documento assinado digitalmente.*`),
	regexp.MustCompile(`www\.\S*\.jus\.br`),
}

// headerLines drop the whole line when it starts with an institutional header.
var headerLines = []*regexp.Regexp{
	regexp.MustCompile(`^MINISTÉRIO PÚBLICO DO ESTADO DE`),
	regexp.MustCompile(`^PROMOTORIA DE JUSTIÇA`),
}

// Clean normalizes extracted PDF text: whitespace is collapsed per line,
// institutional headers, footers and page numbers are removed, blank line
// runs are capped at one empty line and the result is trimmed.
//
// Clean is idempotent: Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFC.String(text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = stripInline(collapseLine(line))
		if isHeaderLine(line) || pageNumberLine.MatchString(line) {
			continue
		}
		out = append(out, line)
	}

	text = strings.Join(out, "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func collapseLine(line string) string {
	return strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
}

// stripInline removes inline boilerplate until the line stops changing, so a
// removal that exposes a new match is handled in the same pass.
func stripInline(line string) string {
	for {
		next := line
		for _, re := range inlineBoilerplate {
			next = re.ReplaceAllString(next, "")
		}
		next = collapseLine(next)
		if next == line {
			return line
		}
		line = next
	}
}

func isHeaderLine(line string) bool {
	for _, re := range headerLines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
