package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher reloads a config file while the bot runs and hands every accepted
// revision to a callback. A revision is accepted when it parses, validates
// and differs in content from the last one seen.
type Watcher struct {
	path     string
	interval time.Duration
	env      LookupEnv
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	seen    stamp
}

// stamp identifies one revision of the file on disk.
type stamp struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

func (s stamp) sameFile(info os.FileInfo) bool {
	return s.size == info.Size() && s.mtime.Equal(info.ModTime())
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often [Watcher.Run] polls. Defaults to 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithEnv replaces [os.LookupEnv] as the environment overlaid on every
// revision.
func WithEnv(env LookupEnv) WatcherOption {
	return func(w *Watcher) { w.env = env }
}

// NewWatcher loads path once and fails when that first revision is not
// usable. Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		env:      os.LookupEnv,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.seen = cfg, st
	return w, nil
}

// Current returns the last accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done. Rejected revisions are logged and
// the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		changed, err := w.Poll()
		switch {
		case err != nil:
			slog.Warn("config reload rejected, keeping previous config", "path", w.path, "err", err)
		case changed:
			slog.Info("config reloaded", "path", w.path)
		}
	}
}

// Poll checks the file once. It reports whether a new revision was accepted
// and passed to the callback. A rejected revision is remembered so it is
// reported only once.
func (w *Watcher) Poll() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	unchanged := w.seen.sameFile(info)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, err
	}
	st := stamp{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}

	w.mu.Lock()
	if st.sum == w.seen.sum {
		w.seen = st
		w.mu.Unlock()
		return false, nil
	}
	w.seen = st
	w.mu.Unlock()

	cfg, err := build(bytes.NewReader(data), w.env)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, stamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, stamp{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, stamp{}, err
	}
	cfg, err := build(bytes.NewReader(data), w.env)
	if err != nil {
		return nil, stamp{}, err
	}
	return cfg, stamp{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}, nil
}
