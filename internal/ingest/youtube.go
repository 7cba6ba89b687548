package ingest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexkamer/recall/internal/log"
)

const (
	defaultWatchBase     = "https://www.youtube.com"
	defaultTimedTextBase = "https://video.google.com/timedtext"
)

// ErrNoTranscript indicates the video has no captions in the requested
// language.
var ErrNoTranscript = errors.New("no transcript available")

// ErrBadVideoURL indicates the URL is not a recognizable YouTube video
// link.
var ErrBadVideoURL = errors.New("not a YouTube video URL")

// Transcript is the caption text of one video.
type Transcript struct {
	VideoID string
	Title   string
	Text    string
}

// TranscriptFetcher retrieves YouTube video transcripts via the timedtext
// endpoint and the video title from the watch page.
type TranscriptFetcher struct {
	client        *http.Client
	logger        log.Logger
	watchBase     string
	timedTextBase string
}

// NewTranscriptFetcher creates a TranscriptFetcher. client may be nil for a
// default with a sane timeout.
func NewTranscriptFetcher(client *http.Client, logger log.Logger) *TranscriptFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &TranscriptFetcher{
		client:        client,
		logger:        logger,
		watchBase:     defaultWatchBase,
		timedTextBase: defaultTimedTextBase,
	}
}

// VideoID extracts the video id from any of the common YouTube URL forms:
// youtu.be/ID, watch?v=ID, /shorts/ID, and /embed/ID.
func VideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadVideoURL, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id := strings.SplitN(rest, "/", 2)[0]; id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrBadVideoURL, rawURL)
}

// Fetch retrieves the transcript of videoURL in lang (e.g. "en").
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoURL, lang string) (*Transcript, error) {
	id, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = "en"
	}

	title, err := f.fetchTitle(ctx, id)
	if err != nil {
		// Title is presentation only; a transcript without one is still
		// useful.
		f.logger.Debug("video title lookup failed", "video_id", id, "error", err)
		title = id
	}

	text, err := f.fetchCaptions(ctx, id, lang)
	if err != nil {
		return nil, err
	}

	return &Transcript{VideoID: id, Title: title, Text: text}, nil
}

func (f *TranscriptFetcher) fetchTitle(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.watchBase+"/watch?v="+url.QueryEscape(id), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	if title, ok := doc.Find(`meta[name="title"]`).Attr("content"); ok && title != "" {
		return title, nil
	}
	title := strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
	if title == "" {
		return "", errors.New("no title element")
	}
	return title, nil
}

// timedTextDoc mirrors the timedtext XML: <transcript><text start=".."
// dur="..">line</text>...</transcript>.
type timedTextDoc struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

func (f *TranscriptFetcher) fetchCaptions(ctx context.Context, id, lang string) (string, error) {
	captionsURL := fmt.Sprintf("%s?lang=%s&v=%s", f.timedTextBase, url.QueryEscape(lang), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, captionsURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("captions status %d: %w", resp.StatusCode, ErrNoTranscript)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read captions: %w", err)
	}
	// The endpoint returns 200 with an empty body when no track exists.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", ErrNoTranscript
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse captions XML: %w", err)
	}
	if len(doc.Lines) == 0 {
		return "", ErrNoTranscript
	}

	var b strings.Builder
	for i, line := range doc.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Body))
		if text == "" {
			continue
		}
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}

	f.logger.Debug("fetched transcript", "video_id", id, "lines", len(doc.Lines))
	return b.String(), nil
}
