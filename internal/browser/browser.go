// Package browser abstracts the headless browser the case-law scraper drives.
//
// An Engine is a long-lived process handle. Each search opens a Session (an
// isolated browsing context with its own cookies) and one Page per site.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned by drivers that cannot perform an action,
	// such as form interaction over plain HTTP.
	ErrUnsupported = errors.New("browser action not supported by driver")
	// ErrDisallowed is returned when robots.txt forbids a navigation.
	ErrDisallowed = errors.New("navigation disallowed by robots.txt")
	// ErrClosed is returned when using a closed engine, session or page.
	ErrClosed = errors.New("browser closed")
)

// DefaultUserAgent mimics a desktop Chrome so result pages render the same
// markup a person would see.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// SessionOptions configure a browsing session.
type SessionOptions struct {
	UserAgent string
	// JavaScript keeps page scripting enabled.
	JavaScript bool
	// BypassCSP ignores the page's Content-Security-Policy.
	BypassCSP bool
}

// DefaultSessionOptions are the options every search session uses.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{UserAgent: DefaultUserAgent, JavaScript: true, BypassCSP: true}
}

// Engine launches sessions. Close releases the underlying process.
type Engine interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// Session is an isolated browsing context.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Selectors are CSS selectors.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error
	Click(ctx context.Context, selector string) error
	// Visible reports whether selector currently matches a displayed element.
	// It never waits.
	Visible(ctx context.Context, selector string) (bool, error)
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Close() error
}
