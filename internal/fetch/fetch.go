// Package fetch retrieves HTML pages over plain HTTP for the non-browser
// driver, with bounded retries, a redirect cap and an optional page cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/cache"
)

// ErrCacheMiss is returned in CacheOnly mode when a page was never stored.
var ErrCacheMiss = errors.New("page not in cache")

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	Body        []byte
	ContentType string
	FromCache   bool
}

// Client wraps http.Client with timeouts, retry on transient errors and
// conditional revalidation against Cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts       int
	PerRequestTimeout time.Duration
	Cache             *cache.PageCache
	// CacheOnly serves exclusively from Cache and never touches the network.
	CacheOnly bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes truncates page bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	limiter     chan struct{}
	limiterOnce sync.Once
	backoff     func(attempt int) time.Duration
}

// DefaultMaxBodyBytes caps a page body when Client.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 5 << 20

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.code) }

// Get fetches rawURL. 5xx responses and timeouts are retried.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Response{}, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Response{}, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	var meta *cache.PageEntry
	if c.Cache != nil {
		if m, err := c.Cache.Meta(ctx, rawURL); err == nil {
			meta = m
		}
	}
	if c.CacheOnly {
		if meta == nil {
			return Response{}, fmt.Errorf("%s: %w", rawURL, ErrCacheMiss)
		}
		return c.fromCache(ctx, rawURL, meta)
	}

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, status, err := c.tryOnce(ctx, rawURL, meta)
		if err == nil {
			if status == http.StatusNotModified && meta != nil {
				log.Debug().Str("url", rawURL).Msg("page not modified; serving cache")
				return c.fromCache(ctx, rawURL, meta)
			}
			if c.Cache != nil {
				entry := cache.PageEntry{URL: rawURL, ContentType: resp.ContentType, ETag: resp.etag, LastModified: resp.lastModified}
				if err := c.Cache.Save(ctx, entry, resp.Body); err != nil {
					log.Warn().Err(err).Str("url", rawURL).Msg("page cache save failed")
				}
			}
			return resp.Response, nil
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(c.delay(i)):
		}
	}
	return Response{}, lastErr
}

func (c *Client) fromCache(ctx context.Context, rawURL string, meta *cache.PageEntry) (Response, error) {
	body, err := c.Cache.Body(ctx, rawURL)
	if err != nil {
		return Response{}, fmt.Errorf("load cached page: %w", err)
	}
	return Response{URL: rawURL, Body: body, ContentType: meta.ContentType, FromCache: true}, nil
}

type fetched struct {
	Response
	etag         string
	lastModified string
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, meta *cache.PageEntry) (fetched, int, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetched{}, 0, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	if meta != nil {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fetched{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return fetched{}, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetched{}, resp.StatusCode, statusError{code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !isHTML(ct) {
		return fetched{}, resp.StatusCode, fmt.Errorf("unsupported content type: %s", ct)
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fetched{}, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) == limit {
		log.Debug().Str("url", rawURL).Int64("bytes", limit).Msg("page body truncated")
	}
	return fetched{
		Response:     Response{URL: resp.Request.URL.String(), Body: b, ContentType: ct},
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, resp.StatusCode, nil
}

func (c *Client) httpClient() *http.Client {
	base := http.Client{Timeout: c.PerRequestTimeout}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
	return &base
}

func (c *Client) delay(attempt int) time.Duration {
	if c.backoff != nil {
		return c.backoff(attempt)
	}
	return time.Duration(attempt+1) * 200 * time.Millisecond
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se statusError
	return errors.As(err, &se) && se.code >= 500
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isHTML(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() { c.limiter = make(chan struct{}, c.MaxConcurrent) })
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}
