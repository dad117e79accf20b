// Package scrape fetches a web page and extracts its readable text.
// Only public http(s) hosts are fetched; redirects are not followed.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxBytes = 2 * 1024 * 1024
	connectTimeout  = 30 * time.Second
	fetchTimeout    = 90 * time.Second
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrFetch is returned when the page could not be retrieved.
var ErrFetch = errors.New("failed to fetch page")

// Document is the readable part of a page.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Scraper validates URLs and extracts page text.
type Scraper struct {
	resolver Resolver
	client   *http.Client
	maxBytes int64
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithResolver replaces the DNS resolver used for host checks.
func WithResolver(r Resolver) Option {
	return func(s *Scraper) { s.resolver = r }
}

// WithHTTPClient replaces the HTTP client. Redirects are still refused.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithMaxBytes caps how much of a response body is read.
func WithMaxBytes(n int64) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// New creates a Scraper.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		resolver: net.DefaultResolver,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = newHTTPClient()
	}

	// Copy so a caller's client is not mutated.
	c := *s.client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	s.client = &c
	return s
}

// newHTTPClient refuses to connect to disallowed addresses at dial time, so
// a host that re-resolves to a private address after validation is still
// blocked.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip != nil && Disallowed(ip) {
				return fmt.Errorf("%w: %s", ErrDisallowedHost, ip)
			}
			return nil
		},
	}
	return &http.Client{
		Timeout: fetchTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: connectTimeout,
		},
	}
}

// Validate checks that raw is an http(s) URL whose host resolves only to
// public addresses. All failures wrap ErrInvalidURL.
func (s *Scraper) Validate(ctx context.Context, raw string) error {
	u, err := parseURL(raw)
	if err != nil {
		return err
	}
	return checkHost(ctx, s.resolver, u.Hostname())
}

// Scrape returns the readable text of the page at raw. Responses that are
// not HTML or text yield an empty string.
func (s *Scraper) Scrape(ctx context.Context, raw string) (string, error) {
	doc, err := s.Fetch(ctx, raw)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Fetch is Scrape with the page title.
func (s *Scraper) Fetch(ctx context.Context, raw string) (*Document, error) {
	u, err := parseURL(raw)
	if err != nil {
		return nil, err
	}
	if err := checkHost(ctx, s.resolver, u.Hostname()); err != nil {
		return nil, err
	}

	log := logrus.WithField("url", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if loc := resp.Header.Get("Location"); loc != "" {
			return nil, fmt.Errorf("%w: status %d, redirects to %s", ErrFetch, resp.StatusCode, loc)
		}
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	doc := &Document{URL: u.String()}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	isHTML := strings.Contains(ctype, "html")
	if !isHTML && !strings.HasPrefix(ctype, "text/") {
		log.WithField("content_type", ctype).Debug("skipping non-text response")
		return doc, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	if int64(len(body)) >= s.maxBytes {
		log.WithField("max_bytes", s.maxBytes).Warn("page truncated")
	}

	if !isHTML {
		doc.Text = normalizeSpace(string(body))
		return doc, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract content: %v", ErrFetch, err)
	}
	doc.Title = strings.TrimSpace(article.Title)
	doc.Text = normalizeSpace(article.TextContent)

	log.WithField("chars", len([]rune(doc.Text))).Debug("page scraped")
	return doc, nil
}

// normalizeSpace collapses runs of blanks inside each line and drops empty
// lines, keeping line structure for the text splitter.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
