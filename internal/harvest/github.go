package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/valinor-ai/tipwarden/internal/tip"
)

type GitHubConfig struct {
	APIURL         string
	RawURL         string
	Token          string
	Queries        []string
	MinStars       int
	TrustedAuthors []string
}

// GitHub harvests steering files found through code search.
type GitHub struct {
	cfg    GitHubConfig
	client *http.Client
	now    func() time.Time
}

func NewGitHub(cfg GitHubConfig, client *http.Client) *GitHub {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.RawURL == "" {
		cfg.RawURL = "https://raw.githubusercontent.com"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.RawURL = strings.TrimRight(cfg.RawURL, "/")
	return &GitHub{cfg: cfg, client: defaultClient(client), now: time.Now}
}

func (g *GitHub) Name() string { return "github" }

type codeSearchResult struct {
	Items []codeItem `json:"items"`
}

type codeItem struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
	Repository struct {
		FullName string `json:"full_name"`
		Stars    int    `json:"stargazers_count"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

func (g *GitHub) Harvest(ctx context.Context) ([]tip.Record, error) {
	var out []tip.Record
	seen := make(map[string]bool)

	for _, q := range g.cfg.Queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := g.search(ctx, q)
		if err != nil {
			slog.Warn("github search failed", "query", q, "error", err)
			continue
		}
		for _, item := range items {
			rec, ok := g.fromItem(ctx, item)
			if !ok || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

func (g *GitHub) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github.v3+json")
	if g.cfg.Token != "" {
		h.Set("Authorization", "token "+g.cfg.Token)
	}
	return h
}

func (g *GitHub) search(ctx context.Context, query string) ([]codeItem, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("per_page", "30")
	body, err := get(ctx, g.client, g.cfg.APIURL+"/search/code?"+v.Encode(), g.header())
	if err != nil {
		return nil, err
	}
	var res codeSearchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding search result: %w", err)
	}
	return res.Items, nil
}

func (g *GitHub) fromItem(ctx context.Context, item codeItem) (tip.Record, bool) {
	repo := item.Repository
	owner := repo.Owner.Login
	if !slices.Contains(g.cfg.TrustedAuthors, owner) && repo.Stars < g.cfg.MinStars {
		return tip.Record{}, false
	}

	raw, err := g.rawURL(item.HTMLURL)
	if err != nil {
		return tip.Record{}, false
	}
	body, err := get(ctx, g.client, raw, nil)
	if err != nil {
		slog.Debug("github file fetch failed", "url", raw, "error", err)
		return tip.Record{}, false
	}
	content := string(body)
	if len(content) < minContentLen {
		return tip.Record{}, false
	}

	return tip.Record{
		ID:       tip.Fingerprint(item.HTMLURL),
		Title:    fmt.Sprintf("%s from %s", item.Name, repo.FullName),
		Content:  truncate(content, maxContentLen),
		Source:   tip.SourceGitHub,
		URL:      item.HTMLURL,
		Author:   owner,
		Score:    repo.Stars,
		Date:     g.now().UTC(),
		Category: tip.Categorize(item.Name, content),
		Metadata: map[string]any{"repo": repo.FullName, "path": item.Path},
	}, true
}

// rawURL maps a blob page URL onto the raw content host.
func (g *GitHub) rawURL(htmlURL string) (string, error) {
	u, err := url.Parse(htmlURL)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("invalid html url %q", htmlURL)
	}
	return g.cfg.RawURL + strings.Replace(u.Path, "/blob/", "/", 1), nil
}
