package news

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

const (
	defaultRedditBase = "https://www.reddit.com"
	defaultSubreddit  = "starcitizen"
	defaultLimit      = 15
	defaultUserAgent  = "radiodj/1.0"
	condenseMaxTokens = 60
	condenseTemp      = 0.8
)

// FetchOption configures a [Fetcher].
type FetchOption func(*Fetcher)

// WithBaseURL overrides the Reddit base URL.
func WithBaseURL(u string) FetchOption {
	return func(f *Fetcher) { f.base = strings.TrimRight(u, "/") }
}

// WithSubreddit sets the subreddit to read.
func WithSubreddit(sub string) FetchOption { return func(f *Fetcher) { f.subreddit = sub } }

// WithLimit sets how many posts to request.
func WithLimit(n int) FetchOption { return func(f *Fetcher) { f.limit = n } }

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetchOption { return func(f *Fetcher) { f.client = c } }

// WithStation sets the station name used in the condensing prompt.
func WithStation(name string) FetchOption { return func(f *Fetcher) { f.station = name } }

// WithDelay sets the pause between model calls.
func WithDelay(d time.Duration) FetchOption { return func(f *Fetcher) { f.delay = d } }

// Fetcher pulls top posts from a subreddit and condenses them.
type Fetcher struct {
	llm       llm.Provider
	client    *http.Client
	base      string
	subreddit string
	limit     int
	station   string
	topic     string
	delay     time.Duration
	now       func() time.Time
}

// NewFetcher returns a Fetcher condensing headlines about topic with p.
func NewFetcher(p llm.Provider, topic string, opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		llm:       p,
		client:    &http.Client{Timeout: 30 * time.Second},
		base:      defaultRedditBase,
		subreddit: defaultSubreddit,
		limit:     defaultLimit,
		station:   "WF4S Haulin' Radio",
		topic:     topic,
		delay:     500 * time.Millisecond,
		now:       time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Stickied  bool   `json:"stickied"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Headlines returns the non-stickied titles of today's top posts.
func (f *Fetcher) Headlines(ctx context.Context) ([]string, error) {
	q := url.Values{"t": {"day"}, "limit": {fmt.Sprint(f.limit)}}
	u := fmt.Sprintf("%s/r/%s/top.json?%s", f.base, url.PathEscape(f.subreddit), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("news: build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news: fetch headlines: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news: fetch headlines: unexpected status %d", resp.StatusCode)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("news: decode listing: %w", err)
	}
	var titles []string
	for _, c := range l.Data.Children {
		if c.Data.Stickied || strings.TrimSpace(c.Data.Title) == "" {
			continue
		}
		titles = append(titles, c.Data.Title)
	}
	return titles, nil
}

// Condense rewrites a headline as one short radio sentence. Without a
// model the headline is used as is.
func (f *Fetcher) Condense(ctx context.Context, title string) (string, error) {
	if f.llm == nil {
		return strings.TrimSpace(title), nil
	}
	resp, err := f.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf("You are a radio DJ for %s, a %s-themed station. "+
			"Condense news into ONE short, punchy sentence (max 25 words) suitable for radio. "+
			"Be enthusiastic and use space/hauling terminology when relevant.", f.station, f.topic),
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Condense this %s news: %q", f.topic, title),
		}},
		Temperature: condenseTemp,
		MaxTokens:   condenseMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("news: empty condensation")
	}
	return strings.TrimSpace(resp.Content), nil
}

// Fetch reads the headlines and condenses each one. Headlines whose
// condensation fails are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context) ([]Story, error) {
	titles, err := f.Headlines(ctx)
	if err != nil {
		return nil, err
	}
	stories := make([]Story, 0, len(titles))
	for i, title := range titles {
		if i > 0 && f.delay > 0 {
			select {
			case <-ctx.Done():
				return stories, ctx.Err()
			case <-time.After(f.delay):
			}
		}
		condensed, err := f.Condense(ctx, title)
		if err != nil {
			slog.Warn("failed to condense headline", "title", title, "err", err)
			continue
		}
		stories = append(stories, Story{
			Original:  title,
			Condensed: condensed,
			Source:    "Reddit",
			Timestamp: f.now().UTC().Format(time.RFC3339),
		})
	}
	return stories, nil
}

// Save writes stories to path in the layout understood by [Load]. The file is
// replaced atomically.
func Save(path string, stories []Story, fetchedAt time.Time) error {
	doc := struct {
		FetchedAt string  `json:"fetchedAt"`
		Stories   []Story `json:"stories"`
	}{FetchedAt: fetchedAt.UTC().Format(time.RFC3339), Stories: stories}
	if doc.Stories == nil {
		doc.Stories = []Story{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("news: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("news: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".news-*.json")
	if err != nil {
		return fmt.Errorf("news: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("news: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("news: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("news: replace %q: %w", path, err)
	}
	return nil
}
