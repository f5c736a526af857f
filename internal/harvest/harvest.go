// Package harvest pulls candidate tips from community sources.
package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valinor-ai/tipwarden/internal/tip"
)

const (
	userAgent     = "tipwarden/1.0"
	minContentLen = 50
	maxContentLen = 5000
	maxBodyBytes  = 4 << 20
)

// Harvester fetches candidate tips from one source.
type Harvester interface {
	Name() string
	Harvest(ctx context.Context) ([]tip.Record, error)
}

// relevanceKeywords must appear in a post's title or body.
var relevanceKeywords = []string{"claude", "prompt", "tip", "workflow", "trick", "technique"}

func relevant(title, content string) bool {
	text := strings.ToLower(title + " " + content)
	for _, k := range relevanceKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// usableContent reports whether a post body is worth triaging.
func usableContent(content string) bool {
	return content != "" && content != "[removed]" && content != "[deleted]" && len(content) >= minContentLen
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// get issues a GET and returns the body of a 200 response.
func get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("requesting %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 10 * time.Second}
}
