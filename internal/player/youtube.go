package player

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/radiodj/internal/radio"
)

const (
	defaultYouTubeBase = "https://www.googleapis.com/youtube/v3"
	defaultMaxResults  = 25
)

// YouTubeOption configures a [YouTube] searcher.
type YouTubeOption func(*YouTube)

// WithYouTubeBaseURL overrides the Data API base URL.
func WithYouTubeBaseURL(u string) YouTubeOption {
	return func(y *YouTube) { y.base = strings.TrimRight(u, "/") }
}

// WithMaxResults sets how many results a search requests (1-50).
func WithMaxResults(n int) YouTubeOption {
	return func(y *YouTube) { y.maxResults = n }
}

// WithYouTubeHTTPClient replaces the HTTP client.
func WithYouTubeHTTPClient(c *http.Client) YouTubeOption {
	return func(y *YouTube) { y.client = c }
}

// YouTube searches videos through the YouTube Data API v3.
type YouTube struct {
	apiKey     string
	base       string
	maxResults int
	client     *http.Client
}

var _ Searcher = (*YouTube)(nil)

// NewYouTube returns a searcher authenticating with apiKey.
func NewYouTube(apiKey string, opts ...YouTubeOption) (*YouTube, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("player: youtube api key is required")
	}
	y := &YouTube{
		apiKey:     apiKey,
		base:       defaultYouTubeBase,
		maxResults: defaultMaxResults,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(y)
	}
	y.maxResults = max(1, min(y.maxResults, 50))
	return y, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search implements [Searcher].
func (y *YouTube) Search(ctx context.Context, query string) ([]radio.Track, error) {
	q := url.Values{
		"part":            {"snippet"},
		"type":            {"video"},
		"videoEmbeddable": {"true"},
		"maxResults":      {strconv.Itoa(y.maxResults)},
		"q":               {query},
		"key":             {y.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("player: youtube search: %w", err)
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player: youtube search: %w", err)
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("player: youtube search: decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return nil, fmt.Errorf("player: youtube search: status %d: %s", resp.StatusCode, msg)
	}

	tracks := make([]radio.Track, 0, len(body.Items))
	for _, it := range body.Items {
		if it.ID.VideoID == "" {
			continue
		}
		tracks = append(tracks, radio.Track{
			Title:  html.UnescapeString(it.Snippet.Title),
			Author: html.UnescapeString(it.Snippet.ChannelTitle),
			URL:    "https://www.youtube.com/watch?v=" + it.ID.VideoID,
		})
	}
	return tracks, nil
}
