package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

// ChromeOptions configure the Chrome process.
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	Headless bool
	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool
}

// Chrome drives a local Chrome/Chromium through the DevTools protocol.
type Chrome struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        bool
}

// LaunchChrome starts the browser process. The process lives until Close,
// independently of ctx, which only bounds the launch itself.
func LaunchChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := start(ctx, browserCtx, browserCancel); err != nil {
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	log.Debug().Bool("headless", opts.Headless).Msg("chrome started")
	return &Chrome{allocCancel: allocCancel, browserCtx: browserCtx, browserCancel: browserCancel}, nil
}

// NewSession opens a fresh browser context (separate cookies and storage).
func (c *Chrome) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	sctx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithNewBrowserContext())
	if err := start(ctx, sctx, cancel); err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	return &chromeSession{ctx: sctx, cancel: cancel, opts: opts}, nil
}

// Close terminates the browser. Calling it again is a no-op.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   SessionOptions
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	pctx, cancel := chromedp.NewContext(s.ctx)
	if err := start(ctx, pctx, cancel); err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	actions := []chromedp.Action{
		emulation.SetScriptExecutionDisabled(!s.opts.JavaScript),
		page.SetBypassCSP(s.opts.BypassCSP),
	}
	if s.opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.opts.UserAgent))
	}
	if err := runBounded(ctx, pctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &chromePage{ctx: pctx, cancel: cancel}, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return runBounded(ctx, p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return runBounded(ctx, p.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Press(ctx context.Context, selector, key string) error {
	return runBounded(ctx, p.ctx, chromedp.SendKeys(selector, keyFor(key), chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return runBounded(ctx, p.ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := runBounded(ctx, p.ctx, chromedp.Evaluate(visibleScript(selector), &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var out string
	if err := runBounded(ctx, p.ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return out, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var out string
	if err := runBounded(ctx, p.ctx, chromedp.Location(&out)); err != nil {
		return "", err
	}
	return out, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// start allocates the target behind a fresh chromedp context. The first Run
// must use the undecorated context: chromedp ties the target's lifetime to it.
// On failure or caller cancellation the target is released with cancel.
func start(caller, target context.Context, cancel context.CancelFunc) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(target) }()
	select {
	case err := <-done:
		if err != nil {
			cancel()
		}
		return err
	case <-caller.Done():
		cancel()
		return caller.Err()
	}
}

// runBounded runs actions on the chromedp context target while honouring the
// caller's deadline and cancellation.
func runBounded(caller, target context.Context, actions ...chromedp.Action) error {
	ctx, cancel := context.WithCancel(target)
	defer cancel()
	if dl, ok := caller.Deadline(); ok {
		var dcancel context.CancelFunc
		ctx, dcancel = context.WithDeadline(ctx, dl)
		defer dcancel()
	}
	stop := context.AfterFunc(caller, cancel)
	defer stop()
	return chromedp.Run(ctx, actions...)
}

func keyFor(name string) string {
	switch name {
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	}
	return name
}

func visibleScript(selector string) string {
	q, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const s = getComputedStyle(el);
	const r = el.getBoundingClientRect();
	return s.display !== 'none' && s.visibility !== 'hidden' && r.width > 0 && r.height > 0;
})()`, q)
}
