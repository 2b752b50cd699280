package jurisprudence

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/browser"
)

// Site is one legal database.
type Site interface {
	// Name is the lower-case identifier used to request the site.
	Name() string
	Search(ctx context.Context, p browser.Page, term string, env Env) ([]Result, error)
}

// Env carries the per-search knobs every site honours.
type Env struct {
	// Timeout bounds each browser action.
	Timeout    time.Duration
	MaxResults int
	// settle waits for dynamic content after a submit.
	settle func(ctx context.Context) error
}

// Do runs one browser action under the action timeout.
func (e Env) Do(ctx context.Context, action func(ctx context.Context) error) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return action(ctx)
}

// Settle waits for scripts to render results.
func (e Env) Settle(ctx context.Context) error {
	if e.settle == nil {
		return nil
	}
	return e.settle(ctx)
}

// Navigate loads rawURL under the action timeout.
func (e Env) Navigate(ctx context.Context, p browser.Page, rawURL string) error {
	return e.Do(ctx, func(ctx context.Context) error { return p.Navigate(ctx, rawURL) })
}

// Document snapshots the current page for selector harvesting.
func (e Env) Document(ctx context.Context, p browser.Page) (*goquery.Document, error) {
	var html string
	err := e.Do(ctx, func(ctx context.Context) error {
		var err error
		html, err = p.HTML(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// DismissModal clicks the first visible close button among selectors. It
// never fails: a missing or stubborn modal is left alone.
func (e Env) DismissModal(ctx context.Context, p browser.Page, selectors ...string) {
	for _, sel := range selectors {
		var visible bool
		err := e.Do(ctx, func(ctx context.Context) error {
			var err error
			visible, err = p.Visible(ctx, sel)
			return err
		})
		if err != nil || !visible {
			continue
		}
		if err := e.Do(ctx, func(ctx context.Context) error { return p.Click(ctx, sel) }); err != nil {
			log.Debug().Err(err).Str("selector", sel).Msg("modal close failed")
		}
		return
	}
}

// Registry maps identifiers to sites.
type Registry map[string]Site

// SupportedSites lists the default search order.
var SupportedSites = []string{"jusbrasil", "stf", "stj", "tjmg"}

// DefaultRegistry returns every supported site.
func DefaultRegistry() Registry {
	r := Registry{}
	for _, s := range []Site{NewJusBrasil(), NewSTF(), NewSTJ(), NewTJMG()} {
		r[s.Name()] = s
	}
	return r
}

// NormalizeSites trims and lower-cases identifiers, dropping blanks. An
// empty input yields SupportedSites.
func NormalizeSites(sites []string) []string {
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), SupportedSites...)
	}
	return out
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// absolute resolves href against base; unparsable input is returned trimmed.
func absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// firstMatch returns the first selector in the list that matches inside s.
func firstMatch(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if m := s.Find(sel); m.Length() > 0 {
			return m
		}
	}
	return s.Slice(0, 0)
}
