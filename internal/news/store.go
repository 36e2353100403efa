// Package news holds the headlines read out between tracks.
//
// The [Store] is loaded from a JSON file at startup and sampled at random
// with replacement. Reload swaps in a fresh snapshot without a restart. The [Fetcher] refreshes that file from Reddit, condensing
// each headline into one radio-ready sentence with a language model.
package news

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
)

// Item is a single news story.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Story is the on-disk record written by the [Fetcher].
type Story struct {
	Original  string `json:"original"`
	Condensed string `json:"condensed"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Store is a set of news items. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items []Item
	pick  func(n int) int
}

// NewStore returns a Store over items.
func NewStore(items []Item) *Store {
	return &Store{items: items, pick: rand.IntN}
}

// Load reads the news file at path. A missing file yields an empty store and
// no error. Three layouts are understood: a bare array of items, an object
// with an "articles" array of items, and an object with a "stories" array as
// written by [Save], whose condensed text becomes the item title.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("news: read %q: %w", path, err)
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("news: parse %q: %w", path, err)
	}
	return NewStore(items), nil
}

// Parse decodes a news document. Entries without a usable title are dropped.
func Parse(data []byte) ([]Item, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var raw []Item
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return clean(raw), nil
	}

	var doc struct {
		Articles []Item  `json:"articles"`
		Stories  []Story `json:"stories"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw = append(raw, doc.Articles...)
	for _, s := range doc.Stories {
		title := s.Condensed
		if title == "" {
			title = s.Original
		}
		raw = append(raw, Item{Title: title})
	}
	return clean(raw), nil
}

func clean(items []Item) []Item {
	out := items[:0]
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.Description = strings.TrimSpace(it.Description)
		if it.Title == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Replace swaps the item set.
func (s *Store) Replace(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// Reload re-reads path into s. On error the current items are kept.
func (s *Store) Reload(path string) error {
	fresh, err := Load(path)
	if err != nil {
		return err
	}
	s.Replace(fresh.items)
	return nil
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Random returns a uniformly drawn item. ok is false when the store is empty.
// Draws are independent, so the same item may be returned twice in a row.
func (s *Store) Random() (item Item, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return Item{}, false
	}
	return s.items[s.pick(len(s.items))], true
}

// Text renders item as the spoken news body:
// "<topic> news update: <title>. <description>".
func Text(topic string, item Item) string {
	title := strings.TrimRight(item.Title, ".!? ")
	s := fmt.Sprintf("%s news update: %s.", topic, title)
	if item.Description != "" {
		s += " " + item.Description
	}
	return strings.TrimSpace(s)
}
