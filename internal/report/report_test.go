package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/melkor/internal/analysis"
	"github.com/hyperifyio/melkor/internal/indictment"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
	"github.com/hyperifyio/melkor/internal/pdftext"
)

func sampleCase() Case {
	return Case{
		Document: pdftext.Document{Path: "denuncia.pdf", Method: pdftext.MethodOCR, Pages: 3, Warnings: []string{"page 2: empty text layer"}},
		Info: indictment.Info{
			Defendants:   []string{"JOÃO DA SILVA"},
			Charges:      []string{"roubo majorado"},
			IncidentDate: "10 de janeiro de 2023",
		},
		Findings: []analysis.Finding{{Rule: "sem_local", Message: "A denúncia não indica com clareza o local do fato."}},
		Jurisprudence: &jurisprudence.Report{
			Term: "roubo",
			Outcomes: []jurisprudence.Outcome{
				{Site: "jusbrasil", Status: jurisprudence.StatusOK, Results: []jurisprudence.Result{{
					Title: "HC 123", Link: "https://jb.test/1", Summary: "Ordem concedida.", Source: "JusBrasil", PublishedAt: "12/03/2023",
				}}},
				{Site: "stf", Status: jurisprudence.StatusNotImplemented, Results: []jurisprudence.Result{}, Message: "site extraction not implemented"},
			},
		},
		Summary:     "Resumo dos julgados.",
		GeneratedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Footer:      Footer{Model: "m", Driver: "chrome", OCR: true},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleCase())
	for _, want := range []string{
		"# Análise da denúncia",
		"Gerado em 2024-05-01 09:30",
		"- Método de extração: OCR",
		"- Páginas: 3",
		"- Aviso: page 2: empty text layer",
		"- Denunciados: JOÃO DA SILVA",
		"- Vítimas: não identificado",
		"- Data do fato: 10 de janeiro de 2023",
		"- Local do fato: não identificado",
		"- A denúncia não indica com clareza o local do fato.",
		"## Jurisprudência: roubo",
		"Resumo dos julgados.",
		"### jusbrasil (ok)",
		"1. [HC 123](https://jb.test/1) (JusBrasil, 12/03/2023)",
		"### stf (not_implemented)",
		"site extraction not implemented",
		"Reprodutibilidade: model=m; driver=chrome; ocr=true; page_cache=false; llm_cache=false",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdown_WithoutSearch(t *testing.T) {
	c := sampleCase()
	c.Jurisprudence = nil
	c.Footer = Footer{}
	md := Markdown(c)
	if strings.Contains(md, "Jurisprudência") || strings.Contains(md, "Reprodutibilidade") {
		t.Fatalf("unexpected sections:\n%s", md)
	}
	if Markdown(c) != md {
		t.Fatalf("markdown not deterministic")
	}
}

func TestWritePDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.pdf")
	if err := WritePDF(Markdown(sampleCase()), out); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", b[:min(len(b), 16)])
	}
}

func TestOutputPath(t *testing.T) {
	p := OutputPath("out", "/tmp/Denúncia João Silva.pdf")
	if filepath.Dir(p) != "out" {
		t.Fatalf("dir = %q", filepath.Dir(p))
	}
	name := filepath.Base(p)
	if !strings.HasPrefix(name, "denuncia-joao-silva-") || !strings.HasSuffix(name, ".md") {
		t.Fatalf("name = %q", name)
	}
	if OutputPath("out", "/tmp/Denúncia João Silva.pdf") != p {
		t.Fatalf("path not stable")
	}
	if OutputPath("out", "/other/Denúncia João Silva.pdf") == p {
		t.Fatalf("different files should not collide")
	}
	if got := filepath.Dir(OutputPath("", "x.pdf")); got != "reports" {
		t.Fatalf("default dir = %q", got)
	}
}
