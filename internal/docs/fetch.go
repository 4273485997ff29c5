// internal/docs/fetch.go
//
// Package docs fetches web documentation pages and converts them to markdown
// for display in chat front-ends.
package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	defaultTimeout = 30 * time.Second
	// maxMarkdownChars caps the converted page so a huge reference page
	// cannot flood a chat reply.
	maxMarkdownChars = 50000
)

// Fetcher retrieves HTML pages and converts them to markdown.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Fetch downloads the page and returns it as markdown, truncated to a
// displayable size.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "cloudclaw/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", url, err)
	}

	if len(markdown) > maxMarkdownChars {
		markdown = markdown[:maxMarkdownChars] + "\n\n... (truncated)"
	}
	return markdown, nil
}
