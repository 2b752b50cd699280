// Package app wires the extractor, the case-law scraper, the summarizer and
// the report writer behind the melkor commands.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/analysis"
	"github.com/hyperifyio/melkor/internal/browser"
	"github.com/hyperifyio/melkor/internal/cache"
	"github.com/hyperifyio/melkor/internal/fetch"
	"github.com/hyperifyio/melkor/internal/indictment"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
	"github.com/hyperifyio/melkor/internal/llm"
	"github.com/hyperifyio/melkor/internal/pdftext"
	"github.com/hyperifyio/melkor/internal/report"
	"github.com/hyperifyio/melkor/internal/robots"
	"github.com/hyperifyio/melkor/internal/summarize"
)

type App struct {
	cfg        Config
	httpClient *http.Client
	pageCache  *cache.PageCache
	llmCache   *cache.LLMCache
	llm        llm.Client
	ocr        pdftext.OCR
	launch     jurisprudence.Launcher
	extractor  *pdftext.Extractor
	scraper    *jurisprudence.Scraper
	summarizer *summarize.Summarizer
	now        func() time.Time
}

// Option customizes New, mainly for tests.
type Option func(*App)

// WithLauncher replaces the browser selected by cfg.Driver.
func WithLauncher(l jurisprudence.Launcher) Option { return func(a *App) { a.launch = l } }

// WithLLM replaces the OpenAI-compatible backend built from cfg.
func WithLLM(c llm.Client) Option { return func(a *App) { a.llm = c } }

// WithOCR replaces the tesseract toolchain.
func WithOCR(o pdftext.OCR) Option { return func(a *App) { a.ocr = o } }

// New builds the application. Nothing heavy starts here: the browser is
// launched by the first search.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, httpClient: newHTTPClient(), now: time.Now}
	for _, o := range opts {
		o(a)
	}

	if cfg.CacheDir != "" {
		maintainCache(cfg)
		a.pageCache = &cache.PageCache{Dir: filepath.Join(cfg.CacheDir, "pages"), StrictPerms: cfg.CacheStrictPerms}
		a.llmCache = &cache.LLMCache{Dir: filepath.Join(cfg.CacheDir, "llm"), StrictPerms: cfg.CacheStrictPerms}
	}

	if a.ocr == nil {
		a.ocr = pdftext.NewTesseract(cfg.OCRLanguage)
	}
	a.extractor = pdftext.New(pdftext.Options{UseOCR: !cfg.DisableOCR, MinChars: cfg.MinTextChars, OCR: a.ocr})

	if a.llm == nil && strings.TrimSpace(cfg.LLMModel) != "" {
		provider := llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, a.httpClient)
		a.llm = provider
		if !cfg.LLMCacheOnly {
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := llm.CheckModel(pctx, provider, cfg.LLMModel); err != nil {
				log.Warn().Err(err).Str("model", cfg.LLMModel).Msg("LLM preflight failed; summaries may fall back to the digest")
			}
			cancel()
		}
	}
	a.summarizer = &summarize.Summarizer{
		Client:       a.llm,
		Cache:        a.llmCache,
		Model:        cfg.LLMModel,
		CacheOnly:    cfg.LLMCacheOnly,
		SystemPrompt: cfg.SummaryPrompt,
	}

	if a.launch == nil {
		a.launch = a.driver()
	}
	session := browser.DefaultSessionOptions()
	if cfg.UserAgent != "" {
		session.UserAgent = cfg.UserAgent
	}
	settle := cfg.Settle
	if settle == 0 {
		// the scraper reads zero as "use the default"
		settle = -1
	}
	a.scraper = jurisprudence.New(jurisprudence.Options{
		Launch:      a.launch,
		Session:     session,
		Timeout:     cfg.ActionTimeout,
		Settle:      settle,
		MaxResults:  cfg.MaxResults,
		Parallel:    cfg.Parallel,
		MinInterval: cfg.SiteInterval,
	})
	return a, nil
}

// maintainCache applies clear, age and size policies. Failures only warn.
func maintainCache(cfg Config) {
	if cfg.CacheClear {
		if err := cache.ClearDir(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
		}
		return
	}
	if cfg.CacheMaxAge > 0 {
		n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
		if err != nil {
			log.Warn().Err(err).Msg("cache purge by age failed")
		} else if n > 0 {
			log.Debug().Int("removed", n).Msg("cache entries expired")
		}
	}
	if cfg.CacheMaxBytes > 0 || cfg.CacheMaxEntries > 0 {
		n, err := cache.EnforceLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries)
		if err != nil {
			log.Warn().Err(err).Msg("cache size enforcement failed")
		} else if n > 0 {
			log.Debug().Int("removed", n).Msg("cache entries evicted")
		}
	}
}

func (a *App) driver() jurisprudence.Launcher {
	return newDriver(a.cfg, a.httpClient, a.pageCache)
}

// DriverFor returns the launcher New would select for cfg, for tools that
// need to decorate the browser.
func DriverFor(cfg Config) jurisprudence.Launcher {
	var pc *cache.PageCache
	if cfg.CacheDir != "" {
		pc = &cache.PageCache{Dir: filepath.Join(cfg.CacheDir, "pages"), StrictPerms: cfg.CacheStrictPerms}
	}
	return newDriver(cfg, newHTTPClient(), pc)
}

func newDriver(cfg Config, hc *http.Client, pc *cache.PageCache) jurisprudence.Launcher {
	if cfg.Driver == DriverHTTP {
		return func(ctx context.Context) (browser.Engine, error) {
			ua := cfg.UserAgent
			if ua == "" {
				ua = browser.DefaultUserAgent
			}
			return &browser.HTTP{
				Client: &fetch.Client{
					HTTPClient:        hc,
					UserAgent:         ua,
					MaxAttempts:       2,
					PerRequestTimeout: cfg.ActionTimeout,
					Cache:             pc,
					CacheOnly:         cfg.HTTPCacheOnly,
					MaxConcurrent:     4,
				},
				Robots: &robots.Manager{
					HTTPClient:  hc,
					Cache:       pc,
					UserAgent:   ua,
					EntryExpiry: 24 * time.Hour,
				},
			}, nil
		}
	}
	return func(ctx context.Context) (browser.Engine, error) {
		return browser.LaunchChrome(ctx, browser.ChromeOptions{
			ExecPath:  cfg.ChromePath,
			Headless:  !cfg.Headful,
			NoSandbox: os.Geteuid() == 0,
		})
	}
}

// Close releases the browser, if one was started.
func (a *App) Close() error {
	return a.scraper.Close()
}

// Extract reads the indictment at path and pulls out its structured fields.
func (a *App) Extract(ctx context.Context, path string) (pdftext.Document, indictment.Info, error) {
	doc, err := a.extractor.Extract(ctx, path)
	if err != nil {
		return doc, indictment.Info{}, err
	}
	info := indictment.Extract(doc.CleanedText)
	log.Info().Str("path", path).Str("method", string(doc.Method)).Int("pages", doc.Pages).
		Int("defendants", len(info.Defendants)).Int("charges", len(info.Charges)).Msg("indictment extracted")
	return doc, info, nil
}

// Search runs the case-law search and summarizes the results. A summary
// failure degrades to the digest; only search errors are returned.
func (a *App) Search(ctx context.Context, term string, sites []string) (jurisprudence.Report, string, error) {
	if len(sites) == 0 {
		sites = a.cfg.Sites
	}
	rep, err := a.scraper.Search(ctx, term, sites...)
	if err != nil {
		return rep, "", err
	}
	summary, err := a.summarizer.Summarize(ctx, rep)
	if err != nil {
		log.Warn().Err(err).Msg("summary failed; using digest")
		summary = summarize.Digest(rep)
	}
	return rep, summary, nil
}

// Analyze extracts the indictment, screens it for weak points and, when term
// is set, attaches a case-law search. Site failures never fail the analysis.
func (a *App) Analyze(ctx context.Context, path, term string) (report.Case, error) {
	doc, info, err := a.Extract(ctx, path)
	if err != nil {
		return report.Case{}, err
	}
	c := report.Case{
		Document:    doc,
		Info:        info,
		Findings:    analysis.Analyze(doc.CleanedText, info),
		GeneratedAt: a.now(),
		Footer: report.Footer{
			Model:     a.cfg.LLMModel,
			Driver:    a.cfg.Driver,
			OCR:       a.extractor.OCRAvailable(),
			PageCache: a.pageCache != nil,
			LLMCache:  a.llmCache != nil,
		},
	}
	if strings.TrimSpace(term) != "" {
		rep, summary, err := a.Search(ctx, term, nil)
		if err != nil {
			log.Warn().Err(err).Str("term", term).Msg("jurisprudence search failed; report will omit it")
		} else {
			c.Jurisprudence = &rep
			c.Summary = summary
		}
	}
	return c, nil
}

// WriteReport renders c to Markdown (and PDF when configured) and returns the
// paths written. The Markdown path defaults to one derived from the PDF name.
func (a *App) WriteReport(c report.Case) (mdPath, pdfPath string, err error) {
	md := report.Markdown(c)
	mdPath = a.cfg.OutputPath
	if mdPath == "" {
		mdPath = report.OutputPath(a.cfg.ReportsDir, c.Document.Path)
	}
	if dir := filepath.Dir(mdPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return "", "", fmt.Errorf("write report: %w", err)
	}
	if a.cfg.OutputPDFPath != "" {
		if err := report.WritePDF(md, a.cfg.OutputPDFPath); err != nil {
			return mdPath, "", fmt.Errorf("write pdf: %w", err)
		}
		pdfPath = a.cfg.OutputPDFPath
	}
	return mdPath, pdfPath, nil
}
