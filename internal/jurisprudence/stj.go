package jurisprudence

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/melkor/internal/browser"
)

// STJ searches the Superior Tribunal de Justiça judgment base (SCON). Each
// hit is a div.documento made of label/value paragraphs.
type STJ struct {
	BaseURL string
}

// NewSTJ returns the site pointed at production.
func NewSTJ() *STJ {
	return &STJ{BaseURL: "https://scon.stj.jus.br"}
}

func (s *STJ) Name() string { return "stj" }

var stjDate = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// SearchURL builds the judgment-base query URL for term.
func (s *STJ) SearchURL(term string) string {
	q := url.Values{}
	q.Set("b", "ACOR")
	q.Set("livre", term)
	return s.BaseURL + "/SCON/pesquisar.jsp?" + q.Encode()
}

func (s *STJ) Search(ctx context.Context, p browser.Page, term string, env Env) ([]Result, error) {
	searchURL := s.SearchURL(term)
	if err := env.Navigate(ctx, p, searchURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := env.Settle(ctx); err != nil {
		return nil, err
	}
	doc, err := env.Document(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return s.harvest(doc, searchURL, env.MaxResults), nil
}

func (s *STJ) harvest(doc *goquery.Document, searchURL string, max int) []Result {
	results := []Result{}
	doc.Find("div.documento").EachWithBreak(func(_ int, d *goquery.Selection) bool {
		if max > 0 && len(results) >= max {
			return false
		}
		fields := map[string]string{}
		d.Find(".paragrafoBRS").Each(func(_ int, para *goquery.Selection) {
			label := strings.ToLower(text(para.Find(".docTitulo").First()))
			if label != "" {
				fields[label] = text(para.Find(".docTexto").First())
			}
		})
		title := fields["processo"]
		if title == "" {
			return true
		}
		link := searchURL
		if href, ok := d.Find("a[href]").First().Attr("href"); ok && !strings.HasPrefix(href, "javascript:") {
			link = absolute(s.BaseURL+"/SCON/", href)
		}
		results = append(results, Result{
			Title:       title,
			Link:        link,
			Summary:     orDefault(fields["ementa"], SummaryUnavailable),
			Source:      "STJ",
			PublishedAt: orDefault(stjDate.FindString(fields["data da publicação/fonte"]), DateUnavailable),
		})
		return true
	})
	return results
}
