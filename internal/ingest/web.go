package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/alexkamer/recall/internal/log"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxPageBytes        = 4 << 20 // 4 MiB
	userAgent           = "recall/1.0 (+https://github.com/alexkamer/recall)"
)

// ErrNotHTML indicates the fetched resource is not an HTML page.
var ErrNotHTML = errors.New("resource is not an HTML page")

// Page is the readable content extracted from a web page.
type Page struct {
	URL   string
	Title string
	Text  string
}

// WebFetcher downloads a page and extracts its readable article text with
// the Readability algorithm, dropping navigation, ads, and boilerplate.
type WebFetcher struct {
	client *http.Client
	logger log.Logger
}

// NewWebFetcher creates a WebFetcher. client may be nil for a default with
// a sane timeout.
func NewWebFetcher(client *http.Client, logger log.Logger) *WebFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &WebFetcher{client: client, logger: logger}
}

// Fetch downloads rawURL and returns its readable content.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract readable content from %q: %w", rawURL, err)
	}
	if article.TextContent == "" {
		return nil, ErrNotHTML
	}

	title := article.Title
	if title == "" {
		title = parsed.Host
	}

	f.logger.Debug("fetched page",
		"url", rawURL,
		"title", title,
		"text_length", len(article.TextContent))

	return &Page{
		URL:   parsed.String(),
		Title: title,
		Text:  article.TextContent,
	}, nil
}
