package jurisprudence

import (
	"errors"
	"time"
)

const (
	// SummaryUnavailable replaces a missing result summary.
	SummaryUnavailable = "Resumo não disponível"
	// DateUnavailable replaces a missing publication date.
	DateUnavailable = "Não informado"
)

var (
	// ErrEmptyTerm is returned by Search for a blank term.
	ErrEmptyTerm = errors.New("search term is empty")
	// ErrNotImplemented is returned by sites that navigate but do not harvest.
	ErrNotImplemented = errors.New("site extraction not implemented")
	// ErrUnsupportedSite marks identifiers outside the registry.
	ErrUnsupportedSite = errors.New("unsupported site")
)

// Result is one case-law entry.
type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Summary     string `json:"summary"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// Status classifies the outcome of one site.
type Status string

const (
	StatusOK             Status = "ok"
	StatusEmpty          Status = "empty"
	StatusNotImplemented Status = "not_implemented"
	StatusUnsupported    Status = "unsupported"
	StatusFailed         Status = "failed"
)

// Outcome is what happened on one site.
type Outcome struct {
	Site    string        `json:"site"`
	Status  Status        `json:"status"`
	Results []Result      `json:"results"`
	Err     error         `json:"-"`
	Message string        `json:"message,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report collects the outcomes of one search in request order.
type Report struct {
	RunID    string    `json:"run_id"`
	Term     string    `json:"term"`
	Outcomes []Outcome `json:"outcomes"`
}

// Results concatenates every site's results in processing order. Nothing is
// merged or deduplicated across sites.
func (r Report) Results() []Result {
	out := []Result{}
	for _, o := range r.Outcomes {
		out = append(out, o.Results...)
	}
	return out
}

// Outcome returns the outcome recorded for site.
func (r Report) Outcome(site string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Site == site {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed reports whether any site ended in StatusFailed.
func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}
