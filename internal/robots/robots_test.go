package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/melkor/internal/cache"
)

func TestManager_FetchOnce_WithETagRevalidation(t *testing.T) {
	var hits int32
	const etag = `W/"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /jurisprudencia/privado\n"))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{
		HTTPClient:        srv.Client(),
		Cache:             &cache.PageCache{Dir: t.TempDir()},
		UserAgent:         "melkor-test/1.0",
		EntryExpiry:       time.Hour,
		AllowPrivateHosts: true,
	}
	u := srv.URL + "/robots.txt"

	rules, src, err := m.Get(ctx, u)
	if err != nil || src != SourceNetwork {
		t.Fatalf("first get: src=%v err=%v", src, err)
	}
	if got := rules.Groups[0].Disallow[0]; got != "/jurisprudencia/privado" {
		t.Fatalf("unexpected disallow: %q", got)
	}
	if _, src, _ := m.Get(ctx, u); src != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 server hit, got %d", hits)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rules, src, err = m.Get(ctx, u)
	if err != nil || src != SourceCache304 {
		t.Fatalf("revalidation: src=%v err=%v", src, err)
	}
	if rules.Groups[0].Disallow[0] != "/jurisprudencia/privado" {
		t.Fatalf("rules changed after revalidation")
	}
}

func TestManager_MissingRobotsAllowsAll(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	m := &Manager{HTTPClient: srv.Client(), AllowPrivateHosts: true}
	ok, err := m.Allowed(context.Background(), srv.URL+"/busca?q=roubo")
	if err != nil || !ok {
		t.Fatalf("expected allowed on 404, got %v, %v", ok, err)
	}
	if _, err := m.Allowed(context.Background(), srv.URL+"/outra"); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("negative result should be cached, got %d hits", hits)
	}
}

func TestManager_ServerErrorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	m := &Manager{HTTPClient: srv.Client(), AllowPrivateHosts: true}
	if _, _, err := m.Get(context.Background(), srv.URL+"/robots.txt"); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestManager_Allowed_Disallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: melkor\nDisallow: /busca\n\nUser-agent: *\nDisallow:\n"))
	}))
	t.Cleanup(srv.Close)
	m := &Manager{HTTPClient: srv.Client(), UserAgent: "Mozilla/5.0 melkor/1.0", AllowPrivateHosts: true}
	ok, err := m.Allowed(context.Background(), srv.URL+"/busca?q=furto")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected /busca to be disallowed for melkor")
	}
}

func TestManager_RejectsPrivateHosts(t *testing.T) {
	m := &Manager{}
	for _, u := range []string{"http://127.0.0.1/robots.txt", "http://localhost/robots.txt", "http://10.0.0.5/robots.txt", "http://[::1]/robots.txt"} {
		if _, _, err := m.Get(context.Background(), u); err == nil {
			t.Fatalf("expected private host rejection for %s", u)
		}
	}
	if _, _, err := m.Get(context.Background(), "ftp://example.com/robots.txt"); err == nil {
		t.Fatalf("expected scheme rejection")
	}
}

func TestRules_IsAllowed(t *testing.T) {
	rules := Parse(`
# comentário
User-agent: *
Disallow: /private
Allow: /private/ok
Disallow: /*.pdf$
Crawl-delay: 2

User-agent: melkor
User-agent: other
Disallow: /
Allow: /jurisprudencia
`)
	cases := []struct {
		ua, path string
		want     bool
	}{
		{"generic", "/public", true},
		{"generic", "/private/x", false},
		{"generic", "/private/ok/page", true},
		{"generic", "/docs/inteiro-teor.pdf", false},
		{"generic", "/docs/inteiro-teor.pdf?x=1", true},
		{"melkor/1.0", "/jurisprudencia/busca", true},
		{"melkor/1.0", "/noticias", false},
		{"Other-Bot", "/noticias", false},
	}
	for _, tc := range cases {
		if got := rules.IsAllowed(tc.ua, tc.path); got != tc.want {
			t.Fatalf("IsAllowed(%q, %q) = %v, want %v", tc.ua, tc.path, got, tc.want)
		}
	}
	if d := rules.CrawlDelayFor("generic"); d == nil || *d != 2*time.Second {
		t.Fatalf("expected 2s crawl delay, got %v", d)
	}
	if d := rules.CrawlDelayFor("melkor"); d != nil {
		t.Fatalf("melkor group has no crawl delay, got %v", *d)
	}
}

func TestRules_EmptyAllowsAll(t *testing.T) {
	if !(Rules{}).IsAllowed("any", "/x") {
		t.Fatalf("empty rules must allow")
	}
	if !Parse("User-agent: *\nDisallow:\n").IsAllowed("any", "/x") {
		t.Fatalf("empty disallow must allow")
	}
}
