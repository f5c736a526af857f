package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/valinor-ai/tipwarden/internal/tip"
)

// Reddit listing modes.
const (
	ModeJSON = "json"
	ModeFeed = "feed"
)

type RedditConfig struct {
	BaseURL      string
	Mode         string
	Subreddits   []string
	Queries      []string
	MinScore     int
	LookbackDays int
}

// Reddit harvests self posts from subreddits, either through the JSON
// listing API or through the public RSS feeds.
type Reddit struct {
	cfg    RedditConfig
	client *http.Client
	now    func() time.Time
}

func NewReddit(cfg RedditConfig, client *http.Client) *Reddit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Mode == "" {
		cfg.Mode = ModeJSON
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	return &Reddit{cfg: cfg, client: defaultClient(client), now: time.Now}
}

func (r *Reddit) Name() string { return "reddit" }

// Harvest returns relevant recent posts across all configured subreddits.
// Failing listings are logged and skipped.
func (r *Reddit) Harvest(ctx context.Context) ([]tip.Record, error) {
	var out []tip.Record
	seen := make(map[string]bool)
	keep := func(recs []tip.Record) {
		for _, rec := range recs {
			if !seen[rec.ID] {
				seen[rec.ID] = true
				out = append(out, rec)
			}
		}
	}

	for _, sub := range r.cfg.Subreddits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.cfg.Mode == ModeFeed {
			recs, err := r.fromFeed(ctx, sub)
			if err != nil {
				slog.Warn("reddit feed failed", "subreddit", sub, "error", err)
				continue
			}
			keep(recs)
			continue
		}

		recs, err := r.fromListing(ctx, fmt.Sprintf("%s/r/%s/new.json?limit=50", r.cfg.BaseURL, url.PathEscape(sub)))
		if err != nil {
			slog.Warn("reddit listing failed", "subreddit", sub, "error", err)
		}
		keep(recs)

		for _, q := range r.cfg.Queries {
			v := url.Values{}
			v.Set("q", q)
			v.Set("restrict_sr", "on")
			v.Set("sort", "new")
			v.Set("limit", "25")
			recs, err := r.fromListing(ctx, fmt.Sprintf("%s/r/%s/search.json?%s", r.cfg.BaseURL, url.PathEscape(sub), v.Encode()))
			if err != nil {
				slog.Warn("reddit search failed", "subreddit", sub, "query", q, "error", err)
				continue
			}
			keep(recs)
		}
	}
	return out, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	CreatedUTC  float64 `json:"created_utc"`
	Subreddit   string  `json:"subreddit"`
	NumComments int     `json:"num_comments"`
}

func (r *Reddit) fromListing(ctx context.Context, listingURL string) ([]tip.Record, error) {
	body, err := get(ctx, r.client, listingURL, nil)
	if err != nil {
		return nil, err
	}
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	var out []tip.Record
	for _, c := range listing.Data.Children {
		if rec, ok := r.fromPost(c.Data); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Reddit) fromPost(p redditPost) (tip.Record, bool) {
	if p.Score < r.cfg.MinScore || p.Permalink == "" {
		return tip.Record{}, false
	}
	posted := time.Unix(int64(p.CreatedUTC), 0).UTC()
	if !r.recent(posted) {
		return tip.Record{}, false
	}
	title := html.UnescapeString(p.Title)
	content := strings.TrimSpace(html.UnescapeString(p.Selftext))
	if !usableContent(content) || !relevant(title, content) {
		return tip.Record{}, false
	}

	return tip.Record{
		ID:       tip.Fingerprint(p.Permalink),
		Title:    title,
		Content:  content,
		Source:   tip.SourceReddit,
		URL:      "https://reddit.com" + p.Permalink,
		Author:   "u/" + p.Author,
		Score:    p.Score,
		Date:     posted,
		Category: tip.Categorize(title, content),
		Metadata: map[string]any{
			"subreddit":    "r/" + p.Subreddit,
			"num_comments": p.NumComments,
		},
	}, true
}

// fromFeed reads the subreddit's RSS feed. Feeds carry no score, so the
// score filter does not apply.
func (r *Reddit) fromFeed(ctx context.Context, sub string) ([]tip.Record, error) {
	body, err := get(ctx, r.client, fmt.Sprintf("%s/r/%s/new/.rss", r.cfg.BaseURL, url.PathEscape(sub)), nil)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var out []tip.Record
	for _, it := range feed.Items {
		var posted time.Time
		switch {
		case it.PublishedParsed != nil:
			posted = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			posted = it.UpdatedParsed.UTC()
		default:
			continue
		}
		if !r.recent(posted) {
			continue
		}

		permalink := permalinkOf(it.Link)
		if permalink == "" {
			continue
		}
		raw := it.Content
		if raw == "" {
			raw = it.Description
		}
		title := strings.TrimSpace(it.Title)
		content := htmlToText(raw)
		if !usableContent(content) || !relevant(title, content) {
			continue
		}

		author := ""
		if it.Author != nil {
			author = strings.TrimPrefix(it.Author.Name, "/")
		}

		out = append(out, tip.Record{
			ID:       tip.Fingerprint(permalink),
			Title:    title,
			Content:  content,
			Source:   tip.SourceReddit,
			URL:      "https://reddit.com" + permalink,
			Author:   author,
			Date:     posted,
			Category: tip.Categorize(title, content),
			Metadata: map[string]any{"subreddit": "r/" + sub, "via": "rss"},
		})
	}
	return out, nil
}

func (r *Reddit) recent(posted time.Time) bool {
	return r.now().Sub(posted) <= time.Duration(r.cfg.LookbackDays)*24*time.Hour
}

// permalinkOf extracts the path of a post link so feed and JSON harvests
// derive the same tip ID.
func permalinkOf(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return u.Path
}
