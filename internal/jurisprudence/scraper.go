// Package jurisprudence searches Brazilian case-law databases through a
// browser and reports per-site outcomes.
package jurisprudence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/melkor/internal/browser"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultSettle      = 3 * time.Second
	DefaultMaxResults  = 5
	DefaultMinInterval = time.Second
)

// Launcher starts a browser engine.
type Launcher func(ctx context.Context) (browser.Engine, error)

// Options configure a Scraper. Zero values take the defaults above.
type Options struct {
	Launch   Launcher
	Registry Registry
	Session  browser.SessionOptions
	// Timeout bounds each browser action.
	Timeout    time.Duration
	Settle     time.Duration
	MaxResults int
	// Parallel runs each site in its own session concurrently.
	Parallel bool
	// MinInterval spaces navigations to the same site. Negative disables.
	MinInterval time.Duration
}

// Scraper owns a lazily launched browser engine shared by its searches.
// Searches on one Scraper are serialized.
type Scraper struct {
	opts Options

	mu       sync.Mutex
	engine   browser.Engine
	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// New returns a Scraper; no browser starts until the first Search.
func New(opts Options) *Scraper {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Session == (browser.SessionOptions{}) {
		opts.Session = browser.DefaultSessionOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	} else if opts.Settle == 0 {
		opts.Settle = DefaultSettle
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = DefaultMinInterval
	}
	return &Scraper{
		opts:     opts,
		limiters: map[string]*rate.Limiter{},
		sleep:    sleepCtx,
		newRunID: uuid.NewString,
	}
}

// Search runs term against sites (all supported sites when none are given).
// It fails only for a blank term or when the browser cannot be started;
// everything that goes wrong on a site is reported in its Outcome.
func (s *Scraper) Search(ctx context.Context, term string, sites ...string) (Report, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Report{}, ErrEmptyTerm
	}
	ids := NormalizeSites(sites)

	s.mu.Lock()
	defer s.mu.Unlock()

	report := Report{RunID: s.newRunID(), Term: term}
	logger := log.With().Str("run_id", report.RunID).Logger()
	ctx = logger.WithContext(ctx)

	engine, err := s.ensureEngine(ctx)
	if err != nil {
		return report, err
	}
	logger.Info().Str("term", term).Strs("sites", ids).Bool("parallel", s.opts.Parallel).Msg("jurisprudence search")

	if s.opts.Parallel {
		report.Outcomes = s.searchParallel(ctx, engine, term, ids)
	} else if report.Outcomes, err = s.searchSequential(ctx, engine, term, ids); err != nil {
		return report, err
	}
	logger.Info().Int("results", len(report.Results())).Msg("jurisprudence search done")
	return report, nil
}

func (s *Scraper) ensureEngine(ctx context.Context) (browser.Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}
	if s.opts.Launch == nil {
		return nil, errors.New("no browser launcher configured")
	}
	eng, err := s.opts.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.engine = eng
	return eng, nil
}

func (s *Scraper) searchSequential(ctx context.Context, engine browser.Engine, term string, ids []string) ([]Outcome, error) {
	sess, err := engine.NewSession(ctx, s.opts.Session)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer closeQuietly(ctx, "session", sess)

	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		outcomes = append(outcomes, s.runSite(ctx, sess, id, term))
	}
	return outcomes, nil
}

// searchParallel gives every site its own session. A session that cannot be
// opened fails only its site.
func (s *Scraper) searchParallel(ctx context.Context, engine browser.Engine, term string, ids []string) []Outcome {
	outcomes := make([]Outcome, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if _, ok := s.opts.Registry[id]; !ok {
				outcomes[i] = s.unsupported(ctx, id)
				return nil
			}
			sess, err := engine.NewSession(ctx, s.opts.Session)
			if err != nil {
				err = fmt.Errorf("open session: %w", err)
				log.Ctx(ctx).Warn().Err(err).Str("site", id).Msg("site search failed")
				outcomes[i] = Outcome{Site: id, Status: StatusFailed, Results: []Result{}, Err: err, Message: err.Error()}
				return nil
			}
			defer closeQuietly(ctx, "session", sess)
			outcomes[i] = s.runSite(ctx, sess, id, term)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Scraper) runSite(ctx context.Context, sess browser.Session, id, term string) Outcome {
	site, ok := s.opts.Registry[id]
	if !ok {
		return s.unsupported(ctx, id)
	}
	logger := log.Ctx(ctx).With().Str("site", id).Logger()
	start := time.Now()
	out := Outcome{Site: id}
	finish := func(status Status, results []Result, err error) Outcome {
		out.Status, out.Results, out.Err = status, results, err
		if out.Results == nil {
			out.Results = []Result{}
		}
		if err != nil {
			out.Message = err.Error()
		}
		out.Elapsed = time.Since(start)
		return out
	}

	if err := s.limiter(id).Wait(ctx); err != nil {
		return finish(StatusFailed, nil, fmt.Errorf("rate limit: %w", err))
	}
	page, err := sess.NewPage(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("open page failed")
		return finish(StatusFailed, nil, fmt.Errorf("open page: %w", err))
	}
	defer closeQuietly(ctx, "page", page)

	logger.Info().Str("term", term).Msg("searching")
	results, err := site.Search(ctx, page, term, s.env())
	switch {
	case errors.Is(err, ErrNotImplemented):
		logger.Info().Msg("site extraction not implemented; no results")
		return finish(StatusNotImplemented, nil, err)
	case err != nil:
		logger.Error().Err(err).Msg("site search failed")
		return finish(StatusFailed, nil, err)
	}
	if len(results) > s.opts.MaxResults {
		results = results[:s.opts.MaxResults]
	}
	logger.Info().Int("results", len(results)).Msg("site done")
	if len(results) == 0 {
		return finish(StatusEmpty, results, nil)
	}
	return finish(StatusOK, results, nil)
}

func (s *Scraper) unsupported(ctx context.Context, id string) Outcome {
	log.Ctx(ctx).Warn().Str("site", id).Msg("unsupported site")
	err := fmt.Errorf("%q: %w", id, ErrUnsupportedSite)
	return Outcome{Site: id, Status: StatusUnsupported, Results: []Result{}, Err: err, Message: err.Error()}
}

func (s *Scraper) env() Env {
	settle := s.opts.Settle
	return Env{
		Timeout:    s.opts.Timeout,
		MaxResults: s.opts.MaxResults,
		settle: func(ctx context.Context) error {
			return s.sleep(ctx, settle)
		},
	}
}

// limiter returns the per-site navigation limiter. Parallel searches call it
// from several goroutines.
func (s *Scraper) limiter(id string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		limit := rate.Inf
		if s.opts.MinInterval > 0 {
			limit = rate.Every(s.opts.MinInterval)
		}
		l = rate.NewLimiter(limit, 1)
		s.limiters[id] = l
	}
	return l
}

// Close shuts the browser down. It is safe on a never-started or already
// closed Scraper.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type closer interface{ Close() error }

func closeQuietly(ctx context.Context, what string, c closer) {
	if err := c.Close(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("resource", what).Msg("close failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
