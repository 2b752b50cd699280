// Package report renders a case file: the extracted indictment, its weak
// points and related case law, as Markdown and PDF.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/melkor/internal/analysis"
	"github.com/hyperifyio/melkor/internal/indictment"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
	"github.com/hyperifyio/melkor/internal/pdftext"
)

// Case is everything one analyze run produced. Jurisprudence is nil when no
// search ran.
type Case struct {
	Document      pdftext.Document
	Info          indictment.Info
	Findings      []analysis.Finding
	Jurisprudence *jurisprudence.Report
	Summary       string
	GeneratedAt   time.Time
	Footer        Footer
}

// Footer records the settings needed to reproduce a report.
type Footer struct {
	Model     string
	Driver    string
	OCR       bool
	PageCache bool
	LLMCache  bool
}

const notFound = "não identificado"

// Markdown renders c. Output is deterministic for a given Case.
func Markdown(c Case) string {
	var b strings.Builder
	b.WriteString("# Análise da denúncia\n\n")
	if !c.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Gerado em %s\n\n", c.GeneratedAt.Format("2006-01-02 15:04"))
	}

	b.WriteString("## Documento\n\n")
	fmt.Fprintf(&b, "- Arquivo: %s\n", orNotFound(c.Document.Path))
	fmt.Fprintf(&b, "- Método de extração: %s\n", methodLabel(c.Document.Method))
	fmt.Fprintf(&b, "- Páginas: %d\n", c.Document.Pages)
	for _, w := range c.Document.Warnings {
		fmt.Fprintf(&b, "- Aviso: %s\n", w)
	}

	b.WriteString("\n## Informações estruturadas\n\n")
	writeList(&b, "Denunciados", c.Info.Defendants)
	writeList(&b, "Vítimas", c.Info.Victims)
	writeList(&b, "Imputações", c.Info.Charges)
	writeList(&b, "Testemunhas", c.Info.Witnesses)
	fmt.Fprintf(&b, "- Data do fato: %s\n", orNotFound(c.Info.IncidentDate))
	fmt.Fprintf(&b, "- Local do fato: %s\n", orNotFound(c.Info.IncidentLocation))

	b.WriteString("\n## Pontos fracos da acusação\n\n")
	if len(c.Findings) == 0 {
		fmt.Fprintf(&b, "- %s\n", analysis.NoFindings)
	}
	for _, f := range c.Findings {
		fmt.Fprintf(&b, "- %s\n", f.Message)
	}

	if c.Jurisprudence != nil {
		writeJurisprudence(&b, *c.Jurisprudence, c.Summary)
	}

	if c.Footer != (Footer{}) {
		b.WriteString("\n---\n")
		b.WriteString(c.Footer.String())
		b.WriteString("\n")
	}
	return b.String()
}

func writeJurisprudence(b *strings.Builder, rep jurisprudence.Report, summary string) {
	fmt.Fprintf(b, "\n## Jurisprudência: %s\n\n", rep.Term)
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	for _, o := range rep.Outcomes {
		fmt.Fprintf(b, "### %s (%s)\n\n", o.Site, o.Status)
		if len(o.Results) == 0 {
			if o.Message != "" {
				fmt.Fprintf(b, "%s\n\n", o.Message)
			} else {
				b.WriteString("Nenhum resultado.\n\n")
			}
			continue
		}
		for i, r := range o.Results {
			fmt.Fprintf(b, "%d. [%s](%s) (%s, %s)\n", i+1, r.Title, r.Link, r.Source, r.PublishedAt)
			if r.Summary != "" {
				fmt.Fprintf(b, "   %s\n", r.Summary)
			}
		}
		b.WriteString("\n")
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, notFound)
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, "; "))
}

func orNotFound(s string) string {
	if strings.TrimSpace(s) == "" {
		return notFound
	}
	return s
}

func methodLabel(m pdftext.Method) string {
	switch m {
	case pdftext.MethodOCR:
		return "OCR"
	case pdftext.MethodDirect:
		return "camada de texto"
	}
	return notFound
}

// String renders the footer as one line.
func (f Footer) String() string {
	var b strings.Builder
	b.WriteString("Reprodutibilidade: model=")
	b.WriteString(strings.TrimSpace(f.Model))
	b.WriteString("; driver=")
	b.WriteString(strings.TrimSpace(f.Driver))
	b.WriteString("; ocr=")
	b.WriteString(strconv.FormatBool(f.OCR))
	b.WriteString("; page_cache=")
	b.WriteString(strconv.FormatBool(f.PageCache))
	b.WriteString("; llm_cache=")
	b.WriteString(strconv.FormatBool(f.LLMCache))
	return b.String()
}
