// Package preview fetches link-preview metadata for URLs found in message
// text. Fetches run off the request path and failures are silently dropped.
package preview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ripple/internal/models"
	"ripple/internal/observability"

	"golang.org/x/net/html"
)

const maxBodyBytes = 512 * 1024

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// FirstURL returns the first URL in the text, or "" when none is present.
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

// Fetcher retrieves OpenGraph/title metadata from a URL.
type Fetcher struct {
	http   *http.Client
	logger *slog.Logger
}

// NewFetcher returns a Fetcher with the given per-fetch timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		http:   &http.Client{Timeout: timeout},
		logger: observability.Component("preview"),
	}
}

// Fetch downloads the page and extracts preview metadata. It returns an error
// when the page is unreachable or yields no usable metadata.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.LinkPreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ripple-link-preview/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		observability.CollaboratorFailures.WithLabelValues("preview").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview fetch returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	preview := parse(io.LimitReader(resp.Body, maxBodyBytes))
	if preview.Title == "" && preview.Description == "" && preview.ImageURL == "" {
		return nil, fmt.Errorf("no preview metadata found at %s", rawURL)
	}
	preview.URL = rawURL
	return preview, nil
}

// parse walks the HTML token stream for og: meta tags and the <title> element.
func parse(r io.Reader) *models.LinkPreview {
	p := &models.LinkPreview{}
	z := html.NewTokenizer(r)
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return p
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = true
			case "meta":
				var property, content string
				for _, a := range tok.Attr {
					switch a.Key {
					case "property", "name":
						property = a.Val
					case "content":
						content = a.Val
					}
				}
				switch property {
				case "og:title":
					p.Title = content
				case "og:description", "description":
					if p.Description == "" {
						p.Description = content
					}
				case "og:image":
					p.ImageURL = content
				case "og:site_name":
					p.SiteName = content
				}
			case "body":
				// Metadata lives in <head>; stop once the body starts.
				return p
			}
		case html.TextToken:
			if inTitle && p.Title == "" {
				p.Title = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if z.Token().Data == "title" {
				inTitle = false
			}
		}
	}
}
