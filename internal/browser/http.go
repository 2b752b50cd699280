package browser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/melkor/internal/fetch"
	"github.com/hyperifyio/melkor/internal/robots"
)

// HTTP is a driver that fetches pages without executing scripts. It suits
// sites whose result lists are server-rendered and reachable by URL; form
// interaction returns ErrUnsupported.
type HTTP struct {
	Client *fetch.Client
	// Robots, when set, gates every navigation.
	Robots *robots.Manager

	mu     sync.Mutex
	closed bool
}

// NewSession returns a session whose pages share the engine's client. The
// client's user agent is used as is; opts.UserAgent is applied when the
// client has none.
func (h *HTTP) NewSession(_ context.Context, opts SessionOptions) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.Client == nil {
		h.Client = &fetch.Client{MaxAttempts: 2}
	}
	if h.Client.UserAgent == "" {
		h.Client.UserAgent = opts.UserAgent
	}
	return &httpSession{engine: h}, nil
}

// Close marks the engine closed. Calling it again is a no-op.
func (h *HTTP) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

type httpSession struct {
	engine *HTTP
	closed bool
}

func (s *httpSession) NewPage(context.Context) (Page, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return &httpPage{engine: s.engine}, nil
}

func (s *httpSession) Close() error {
	s.closed = true
	return nil
}

type httpPage struct {
	engine *HTTP
	url    string
	body   []byte
	doc    *goquery.Document
}

func (p *httpPage) Navigate(ctx context.Context, rawURL string) error {
	if r := p.engine.Robots; r != nil {
		ok, err := r.Allowed(ctx, rawURL)
		if err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("robots.txt check failed; proceeding")
		} else if !ok {
			return fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}
	resp, err := p.engine.Client.Get(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	node, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}
	p.url = resp.URL
	p.body = resp.Body
	p.doc = goquery.NewDocumentFromNode(node)
	return nil
}

func (p *httpPage) Fill(context.Context, string, string) error  { return ErrUnsupported }
func (p *httpPage) Press(context.Context, string, string) error { return ErrUnsupported }
func (p *httpPage) Click(context.Context, string) error         { return ErrUnsupported }

// Visible approximates rendering by skipping elements hidden through the
// hidden attribute or an inline display:none on the element or an ancestor.
func (p *httpPage) Visible(_ context.Context, selector string) (bool, error) {
	if p.doc == nil {
		return false, nil
	}
	visible := false
	p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hidden(s) {
			visible = true
			return false
		}
		return true
	})
	return visible, nil
}

func hidden(s *goquery.Selection) bool {
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return true
		}
		style, _ := n.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

func (p *httpPage) HTML(context.Context) (string, error) {
	return string(p.body), nil
}

func (p *httpPage) URL(context.Context) (string, error) {
	return p.url, nil
}

func (p *httpPage) Close() error {
	p.doc = nil
	p.body = nil
	return nil
}
