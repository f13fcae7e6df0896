// Package metadata retrieves page metadata for destination URLs.
// Fetches are time-bounded and size-capped; callers treat every failure
// mode identically, so the fetcher just reports errors and lets the
// caller substitute its sentinel.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultTimeout bounds the whole fetch including body read.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxBodyBytes caps how much of the response body is read.
	// Titles live near the top of the document, so 64 KB is plenty and
	// bounds memory against adversarial or huge responses.
	DefaultMaxBodyBytes = 64 * 1024

	// MaxTitleLength is the cap applied to extracted titles.
	MaxTitleLength = 200

	defaultUserAgent = "Mozilla/5.0 (compatible; shortlinker/1.0)"
)

// ErrNoTitle means the document was fetched but contained no usable <title>.
var ErrNoTitle = errors.New("document has no title element")

// Fetcher retrieves page titles over HTTP. Safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBody   int64
	userAgent string
}

// FetcherConfig holds configuration for the Fetcher.
type FetcherConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	Client       *http.Client // mostly for tests
}

// NewFetcher creates a new Fetcher.
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = &FetcherConfig{}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Fetcher{
		client:    client,
		timeout:   timeout,
		maxBody:   maxBody,
		userAgent: userAgent,
	}
}

// Title fetches url and extracts the first <title> element's text,
// whitespace-collapsed and truncated to MaxTitleLength runes. Any failure
// (network error, timeout, non-2xx status, missing title) returns an error;
// the caller decides what to show instead.
func (f *Fetcher) Title(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Read at most maxBody bytes. A truncated document is fine: html.Parse
	// is tolerant of unterminated markup and the title sits near the top.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	title := collapseWhitespace(findTitle(doc))
	if title == "" {
		return "", ErrNoTitle
	}

	return truncate(title, MaxTitleLength), nil
}

// findTitle walks the document and returns the text of the first <title>.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return sb.String()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
