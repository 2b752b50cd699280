package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/app"
	"github.com/hyperifyio/melkor/internal/browser"
)

// debugsite runs a single site search with the environment configuration,
// prints what was harvested and saves every HTML snapshot the site parsed:
//
//	debugsite [SITE] [TERM]
//
// Snapshots go to DUMP_DIR (default: a new temp directory).
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	site, term := "jusbrasil", "roubo majorado"
	if len(os.Args) > 1 {
		site = os.Args[1]
	}
	if len(os.Args) > 2 {
		term = os.Args[2]
	}
	dir := os.Getenv("DUMP_DIR")
	if dir == "" {
		var err error
		if dir, err = os.MkdirTemp("", "debugsite-*"); err != nil {
			fmt.Println("err:", err)
			os.Exit(1)
		}
	}

	_ = app.LoadEnvFiles(".env")
	cfg := app.DefaultConfig()
	app.ApplyEnvOverrides(&cfg)
	cfg.LLMModel = ""

	launch := app.DriverFor(cfg)
	dumping := func(ctx context.Context) (browser.Engine, error) {
		eng, err := launch(ctx)
		if err != nil {
			return nil, err
		}
		return dumpEngine{Engine: eng, dir: dir, seq: new(atomic.Int32)}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	a, err := app.New(ctx, cfg, app.WithLauncher(dumping))
	if err != nil {
		fmt.Println("err:", err)
		os.Exit(1)
	}
	defer a.Close()

	rep, _, err := a.Search(ctx, term, []string{site})
	fmt.Println("err:", err)
	for _, o := range rep.Outcomes {
		fmt.Printf("%s: %s %s (%s)\n", o.Site, o.Status, o.Message, o.Elapsed)
		for i, r := range o.Results {
			fmt.Printf("%d. %s - %s\n   %s\n", i+1, r.Title, r.Link, r.Summary)
		}
	}
	fmt.Println("html:", dir)
}

type dumpEngine struct {
	browser.Engine
	dir string
	seq *atomic.Int32
}

func (e dumpEngine) NewSession(ctx context.Context, opts browser.SessionOptions) (browser.Session, error) {
	s, err := e.Engine.NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	return dumpSession{Session: s, engine: e}, nil
}

type dumpSession struct {
	browser.Session
	engine dumpEngine
}

func (s dumpSession) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := s.Session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return dumpPage{Page: p, engine: s.engine}, nil
}

type dumpPage struct {
	browser.Page
	engine dumpEngine
}

func (p dumpPage) HTML(ctx context.Context) (string, error) {
	html, err := p.Page.HTML(ctx)
	if err != nil {
		return html, err
	}
	u, uerr := p.Page.URL(ctx)
	if uerr != nil {
		log.Debug().Err(uerr).Msg("page url unavailable")
	}
	name := filepath.Join(p.engine.dir, fmt.Sprintf("%02d.html", p.engine.seq.Add(1)))
	if werr := os.WriteFile(name, []byte(html), 0o644); werr != nil {
		log.Warn().Err(werr).Str("file", name).Msg("dump failed")
	} else {
		log.Debug().Str("url", u).Str("file", name).Msg("html saved")
	}
	return html, nil
}
