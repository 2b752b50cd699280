package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/app"
	"github.com/hyperifyio/melkor/internal/indictment"
	"github.com/hyperifyio/melkor/internal/jurisprudence"
	"github.com/hyperifyio/melkor/internal/pdftext"
)

const usage = `melkor: assistente de defesa criminal

Usage:
  melkor extract -pdf FILE [-json] [-no-ocr]
  melkor search  -term TERM [-sites a,b] [-driver chrome|http] [-parallel] [-json]
  melkor analyze -pdf FILE [-term TERM] [-out report.md] [-pdf.out report.pdf]
  melkor -version

Run "melkor <command> -h" for the flags of a command.
`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code: 0 on success,
// 1 on failure, 2 on usage errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "-version", "--version", "version":
		fmt.Fprintln(stdout, app.VersionString())
		return 0
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	}

	var cmd func(context.Context, *command, io.Writer) error
	switch args[0] {
	case "extract":
		cmd = runExtract
	case "search":
		cmd = runSearch
	case "analyze":
		cmd = runAnalyze
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	c := newCommand(args[0], stderr)
	if err := c.fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if err := c.resolve(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	if err := cmd(ctx, c, stdout); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "%s\n", uerr)
			c.fs.Usage()
			return 2
		}
		log.Error().Err(err).Str("command", args[0]).Msg("command failed")
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

// command is a flag set whose explicitly set flags are applied on top of
// the file and environment configuration.
type command struct {
	fs      *flag.FlagSet
	setters map[string]func(*app.Config)
	cfg     app.Config

	configPath string
	envFiles   string
	pdf        string
	term       string
	json       bool
}

func newCommand(name string, stderr io.Writer) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError), setters: map[string]func(*app.Config){}}
	c.fs.SetOutput(stderr)
	def := app.DefaultConfig()

	c.fs.StringVar(&c.configPath, "config", os.Getenv("MELKOR_CONFIG"), "YAML or JSON config file")
	c.fs.StringVar(&c.envFiles, "env", ".env,.env.local", "Comma-separated dotenv files (missing files are skipped)")
	c.boolFlag("v", "Verbose logging", func(cfg *app.Config, v bool) { cfg.Verbose = v })
	c.stringFlag("cache.dir", def.CacheDir, "Cache directory", func(cfg *app.Config, v string) { cfg.CacheDir = v })
	c.durationFlag("cache.maxAge", 0, "Purge cache entries older than this (0 disables)", func(cfg *app.Config, v time.Duration) { cfg.CacheMaxAge = v })
	c.boolFlag("cache.clear", "Clear the cache before running", func(cfg *app.Config, v bool) { cfg.CacheClear = v })
	c.boolFlag("cache.strictPerms", "Restrict cache permissions (0700 dirs, 0600 files)", func(cfg *app.Config, v bool) { cfg.CacheStrictPerms = v })

	switch name {
	case "extract", "analyze":
		c.fs.StringVar(&c.pdf, "pdf", "", "Indictment PDF")
		c.boolFlag("no-ocr", "Never fall back to OCR", func(cfg *app.Config, v bool) { cfg.DisableOCR = v })
		c.stringFlag("ocr.lang", def.OCRLanguage, "Tesseract language", func(cfg *app.Config, v string) { cfg.OCRLanguage = v })
	}
	switch name {
	case "search", "analyze":
		c.fs.StringVar(&c.term, "term", "", "Case-law search term")
		c.stringFlag("sites", strings.Join(jurisprudence.SupportedSites, ","), "Comma-separated sites", func(cfg *app.Config, v string) { cfg.Sites = splitList(v) })
		c.stringFlag("driver", def.Driver, "Browser driver: chrome or http", func(cfg *app.Config, v string) { cfg.Driver = v })
		c.stringFlag("chrome.path", "", "Chrome/Chromium binary", func(cfg *app.Config, v string) { cfg.ChromePath = v })
		c.boolFlag("headful", "Show the browser window", func(cfg *app.Config, v bool) { cfg.Headful = v })
		c.boolFlag("parallel", "Search sites concurrently", func(cfg *app.Config, v bool) { cfg.Parallel = v })
		c.intFlag("max", def.MaxResults, "Maximum results per site", func(cfg *app.Config, v int) { cfg.MaxResults = v })
		c.durationFlag("timeout", def.ActionTimeout, "Timeout of each browser action", func(cfg *app.Config, v time.Duration) { cfg.ActionTimeout = v })
		c.durationFlag("settle", def.Settle, "Wait for dynamic content after loading results (0 disables)", func(cfg *app.Config, v time.Duration) { cfg.Settle = v })
		c.boolFlag("http.cacheOnly", "Serve pages from cache only (http driver)", func(cfg *app.Config, v bool) { cfg.HTTPCacheOnly = v })
		c.stringFlag("llm.base", "", "OpenAI-compatible base URL", func(cfg *app.Config, v string) { cfg.LLMBaseURL = v })
		c.stringFlag("llm.model", "", "Model used for summaries (empty disables)", func(cfg *app.Config, v string) { cfg.LLMModel = v })
		c.stringFlag("llm.key", "", "API key", func(cfg *app.Config, v string) { cfg.LLMAPIKey = v })
		c.boolFlag("llm.cacheOnly", "Serve summaries from cache only", func(cfg *app.Config, v bool) { cfg.LLMCacheOnly = v })
	}
	switch name {
	case "extract", "search":
		c.fs.BoolVar(&c.json, "json", false, "Print JSON")
	case "analyze":
		c.stringFlag("out", "", "Markdown report path (default: derived under -reports)", func(cfg *app.Config, v string) { cfg.OutputPath = v })
		c.stringFlag("pdf.out", "", "Also render the report as PDF", func(cfg *app.Config, v string) { cfg.OutputPDFPath = v })
		c.stringFlag("reports", def.ReportsDir, "Directory for derived report paths", func(cfg *app.Config, v string) { cfg.ReportsDir = v })
	}
	return c
}

func (c *command) stringFlag(name, value, usage string, set func(*app.Config, string)) {
	p := c.fs.String(name, value, usage)
	c.setters[name] = func(cfg *app.Config) { set(cfg, *p) }
}

func (c *command) boolFlag(name, usage string, set func(*app.Config, bool)) {
	p := c.fs.Bool(name, false, usage)
	c.setters[name] = func(cfg *app.Config) { set(cfg, *p) }
}

func (c *command) intFlag(name string, value int, usage string, set func(*app.Config, int)) {
	p := c.fs.Int(name, value, usage)
	c.setters[name] = func(cfg *app.Config) { set(cfg, *p) }
}

func (c *command) durationFlag(name string, value time.Duration, usage string, set func(*app.Config, time.Duration)) {
	p := c.fs.Duration(name, value, usage)
	c.setters[name] = func(cfg *app.Config) { set(cfg, *p) }
}

// resolve loads dotenv files and layers flags over env over file over
// defaults.
func (c *command) resolve() error {
	if err := app.LoadEnvFiles(splitList(c.envFiles)...); err != nil {
		return err
	}
	cfg, err := app.Resolve(c.configPath, func(cfg *app.Config) {
		c.fs.Visit(func(f *flag.Flag) {
			if set, ok := c.setters[f.Name]; ok {
				set(cfg)
			}
		})
	})
	if err != nil {
		return err
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	c.cfg = cfg
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runExtract(ctx context.Context, c *command, stdout io.Writer) error {
	if strings.TrimSpace(c.pdf) == "" {
		return usageError("extract: -pdf is required")
	}
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	doc, info, err := a.Extract(ctx, c.pdf)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(stdout, struct {
			Document pdftext.Document `json:"document"`
			Info     indictment.Info  `json:"info"`
		}{doc, info})
	}
	_, err = fmt.Fprintln(stdout, doc.CleanedText)
	return err
}

func runSearch(ctx context.Context, c *command, stdout io.Writer) error {
	if strings.TrimSpace(c.term) == "" {
		return usageError("search: -term is required")
	}
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	rep, summary, err := a.Search(ctx, c.term, nil)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(stdout, struct {
			Report  jurisprudence.Report `json:"report"`
			Summary string               `json:"summary"`
		}{rep, summary})
	}
	printReport(stdout, rep, summary)
	return nil
}

func printReport(w io.Writer, rep jurisprudence.Report, summary string) {
	for _, o := range rep.Outcomes {
		fmt.Fprintf(w, "== %s: %s (%d resultado(s), %s)\n", o.Site, o.Status, len(o.Results), o.Elapsed.Round(time.Millisecond))
		if o.Message != "" && len(o.Results) == 0 {
			fmt.Fprintf(w, "   %s\n", o.Message)
		}
		for i, r := range o.Results {
			fmt.Fprintf(w, "%d. %s\n   %s\n   %s | %s\n", i+1, r.Title, r.Link, r.Source, r.PublishedAt)
		}
	}
	if summary != "" {
		fmt.Fprintf(w, "\n%s\n", summary)
	}
}

func runAnalyze(ctx context.Context, c *command, stdout io.Writer) error {
	if strings.TrimSpace(c.pdf) == "" {
		return usageError("analyze: -pdf is required")
	}
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	cs, err := a.Analyze(ctx, c.pdf, c.term)
	if err != nil {
		return err
	}
	mdPath, pdfPath, err := a.WriteReport(cs)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "report: %s\n", mdPath)
	if pdfPath != "" {
		fmt.Fprintf(stdout, "pdf: %s\n", pdfPath)
	}
	for _, f := range cs.Findings {
		fmt.Fprintf(stdout, "- %s\n", f.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
