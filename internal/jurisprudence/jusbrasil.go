package jurisprudence

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/browser"
)

// JusBrasil searches the public jurisprudence index at jusbrasil.com.br.
// The markup changes often, so every selector keeps a fallback.
type JusBrasil struct {
	BaseURL string
}

// NewJusBrasil returns the site pointed at production.
func NewJusBrasil() *JusBrasil {
	return &JusBrasil{BaseURL: "https://www.jusbrasil.com.br"}
}

func (j *JusBrasil) Name() string { return "jusbrasil" }

var (
	jusbrasilCards   = []string{"div.search-results_SearchCard__1wsPd", "div[data-testid='search-result-card']"}
	jusbrasilTitle   = "h2 a, a h2, a[data-testid='search-result-card-title']"
	jusbrasilSummary = "div.DocumentSnippet, p[data-testid='search-result-card-snippet']"
	jusbrasilDate    = "span.BaseSnippetWrapper-publish-date, time"
	jusbrasilModals  = []string{"button[aria-label='close']", "*[data-testid='modal-close-button']"}
)

// SearchURL builds the result-list URL for term.
func (j *JusBrasil) SearchURL(term string) string {
	return j.BaseURL + "/jurisprudencia/busca?q=" + url.QueryEscape(term)
}

func (j *JusBrasil) Search(ctx context.Context, p browser.Page, term string, env Env) ([]Result, error) {
	if err := env.Navigate(ctx, p, j.SearchURL(term)); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := env.Settle(ctx); err != nil {
		return nil, err
	}
	env.DismissModal(ctx, p, jusbrasilModals...)

	doc, err := env.Document(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return j.harvest(doc, env.MaxResults), nil
}

func (j *JusBrasil) harvest(doc *goquery.Document, max int) []Result {
	results := []Result{}
	firstMatch(doc.Selection, jusbrasilCards...).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if max > 0 && len(results) >= max {
			return false
		}
		title := card.Find(jusbrasilTitle).First()
		if title.Length() == 0 {
			log.Debug().Str("site", j.Name()).Int("card", i).Msg("card without title; skipping")
			return true
		}
		href, ok := title.Attr("href")
		if !ok {
			href, _ = title.Closest("a").Attr("href")
		}
		results = append(results, Result{
			Title:       text(title),
			Link:        absolute(j.BaseURL+"/", href),
			Summary:     orDefault(text(card.Find(jusbrasilSummary).First()), SummaryUnavailable),
			Source:      "JusBrasil",
			PublishedAt: orDefault(text(card.Find(jusbrasilDate).First()), DateUnavailable),
		})
		return true
	})
	return results
}
