package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/melkor/internal/browser"
	"github.com/hyperifyio/melkor/internal/pdftext"
	"github.com/hyperifyio/melkor/internal/summarize"
)

const scannedIndictment = `MINISTÉRIO PÚBLICO DO ESTADO DE MINAS GERAIS
Denunciado: JOÃO DA SILVA, brasileiro, pela prática do crime de roubo majorado.
No dia 10 de janeiro de 2023, abordou a vítima MARIA OLIVEIRA.
Há uma contradição evidente no depoimento do policial.
Testemunha: PEDRO SANTOS`

// pageOCR pretends every PDF is a one-page scan containing text.
type pageOCR struct{ text string }

func (o pageOCR) Available() bool { return true }

func (o pageOCR) Rasterize(_ context.Context, _ string, dir string) ([]string, error) {
	return []string{filepath.Join(dir, "page-1.png")}, nil
}

func (o pageOCR) Recognize(context.Context, string) (string, error) { return o.text, nil }

// staticEngine serves canned HTML for any URL containing a key of pages.
type staticEngine struct{ pages map[string]string }

func (e staticEngine) NewSession(context.Context, browser.SessionOptions) (browser.Session, error) {
	return staticSession(e), nil
}
func (e staticEngine) Close() error { return nil }

type staticSession staticEngine

func (s staticSession) NewPage(context.Context) (browser.Page, error) {
	return &staticPage{pages: s.pages}, nil
}
func (s staticSession) Close() error { return nil }

type staticPage struct {
	pages map[string]string
	url   string
}

func (p *staticPage) Navigate(_ context.Context, url string) error {
	p.url = url
	return nil
}
func (p *staticPage) Fill(context.Context, string, string) error  { return nil }
func (p *staticPage) Press(context.Context, string, string) error { return nil }
func (p *staticPage) Click(context.Context, string) error         { return nil }
func (p *staticPage) Visible(context.Context, string) (bool, error) {
	return false, nil
}
func (p *staticPage) HTML(context.Context) (string, error) {
	for k, v := range p.pages {
		if strings.Contains(p.url, k) {
			return v, nil
		}
	}
	return "<html><body></body></html>", nil
}
func (p *staticPage) URL(context.Context) (string, error) { return p.url, nil }
func (p *staticPage) Close() error                        { return nil }

func staticLauncher() Option {
	eng := staticEngine{pages: map[string]string{
		"jusbrasil": `<div data-testid="search-result-card"><h2><a href="/jurisprudencia/1">HC 123</a></h2>
<p data-testid="search-result-card-snippet">Ordem concedida.</p></div>`,
	}}
	return WithLauncher(func(context.Context) (browser.Engine, error) { return eng, nil })
}

type failingLLM struct{ calls int }

func (f *failingLLM) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	return openai.ChatCompletionResponse{}, errors.New("connection refused")
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	cfg.Settle = time.Millisecond
	cfg.SiteInterval = time.Millisecond
	return cfg
}

func junkPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Denúncia Digitalizada.pdf")
	if err := os.WriteFile(path, []byte("not really a pdf"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestApp_ExtractFallsBackToOCR(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), WithOCR(pageOCR{text: scannedIndictment}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	doc, info, err := a.Extract(context.Background(), junkPDF(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Method != pdftext.MethodOCR || doc.Pages != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	if len(info.Defendants) == 0 || !strings.HasPrefix(info.Defendants[0], "JOÃO DA SILVA") {
		t.Fatalf("defendants = %v", info.Defendants)
	}
	if info.IncidentDate != "10 de janeiro de 2023" {
		t.Fatalf("date = %q", info.IncidentDate)
	}
}

func TestApp_ExtractMissingFile(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), WithOCR(pageOCR{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if _, _, err := a.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); !errors.Is(err, pdftext.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApp_SearchFallsBackToDigest(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMModel = "m"
	backend := &failingLLM{}
	a, err := New(context.Background(), cfg, staticLauncher(), WithLLM(backend), WithOCR(pageOCR{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	rep, summary, err := a.Search(context.Background(), "roubo", []string{"jusbrasil"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rep.Results()) != 1 || rep.Results()[0].Link != "https://www.jusbrasil.com.br/jurisprudencia/1" {
		t.Fatalf("results = %+v", rep.Results())
	}
	if backend.calls == 0 {
		t.Fatalf("LLM not consulted")
	}
	if summary != summarize.Digest(rep) {
		t.Fatalf("summary should fall back to the digest, got %q", summary)
	}
}

func TestApp_AnalyzeWritesReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sites = []string{"jusbrasil", "stf"}
	cfg.OutputPDFPath = filepath.Join(t.TempDir(), "relatorio.pdf")
	a, err := New(context.Background(), cfg, staticLauncher(), WithOCR(pageOCR{text: scannedIndictment}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	c, err := a.Analyze(context.Background(), junkPDF(t), "roubo majorado")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.Jurisprudence == nil || len(c.Jurisprudence.Outcomes) != 2 {
		t.Fatalf("jurisprudence = %+v", c.Jurisprudence)
	}
	var rules []string
	for _, f := range c.Findings {
		rules = append(rules, f.Rule)
	}
	if !strings.Contains(strings.Join(rules, ","), "contradicao") {
		t.Fatalf("findings = %v", rules)
	}

	mdPath, pdfPath, err := a.WriteReport(c)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if filepath.Dir(mdPath) != cfg.ReportsDir || !strings.HasPrefix(filepath.Base(mdPath), "denuncia-digitalizada-") {
		t.Fatalf("md path = %q", mdPath)
	}
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read md: %v", err)
	}
	for _, want := range []string{"JOÃO DA SILVA", "[HC 123](https://www.jusbrasil.com.br/jurisprudencia/1)", "### stf (not_implemented)"} {
		if !strings.Contains(string(md), want) {
			t.Fatalf("report missing %q:\n%s", want, md)
		}
	}
	if pdfPath != cfg.OutputPDFPath {
		t.Fatalf("pdf path = %q", pdfPath)
	}
	if st, err := os.Stat(pdfPath); err != nil || st.Size() == 0 {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestApp_AnalyzeWithoutTerm(t *testing.T) {
	launched := false
	a, err := New(context.Background(), testConfig(t), WithOCR(pageOCR{text: scannedIndictment}),
		WithLauncher(func(context.Context) (browser.Engine, error) {
			launched = true
			return staticEngine{}, nil
		}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	c, err := a.Analyze(context.Background(), junkPDF(t), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.Jurisprudence != nil || launched {
		t.Fatalf("no search should run without a term")
	}
}

func TestApp_NewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Driver = "firefox"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestDriverFor_HTTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Driver = DriverHTTP
	cfg.HTTPCacheOnly = true
	eng, err := DriverFor(cfg)(context.Background())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer eng.Close()
	h, ok := eng.(*browser.HTTP)
	if !ok {
		t.Fatalf("engine = %T, want *browser.HTTP", eng)
	}
	if h.Client == nil || h.Client.Cache == nil || !h.Client.CacheOnly || h.Client.UserAgent != browser.DefaultUserAgent {
		t.Fatalf("client = %+v", h.Client)
	}
}

func TestApp_ZeroSettleSkipsTheWait(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settle = 0
	a, err := New(context.Background(), cfg, staticLauncher(), WithOCR(pageOCR{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	start := time.Now()
	if _, _, err := a.Search(context.Background(), "roubo", []string{"jusbrasil"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 2*time.Second {
		t.Fatalf("search took %s; a zero settle should not fall back to the default wait", elapsed)
	}
}
