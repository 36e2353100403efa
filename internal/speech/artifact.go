// Package speech turns announcement text into audio files on disk and owns
// the lifecycle of those files.
//
// A [Synthesizer] walks an ordered chain of TTS backends and writes the first
// successful result through an [ArtifactStore]. Every [Artifact] must be
// handed back to [ArtifactStore.Release] once it has been played (or could not
// be played); releasing is idempotent.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/radiodj/internal/observe"
)

// DefaultPrefix is the file name prefix of artifacts written by the store.
const DefaultPrefix = "ava"

// Artifact is a synthesised audio file owned by the caller until released.
type Artifact struct {
	// Path is the absolute file path.
	Path string

	// CreatedAt is the creation time.
	CreatedAt time.Time

	released atomic.Bool
}

// ArtifactStore creates uniquely named audio files in a directory and
// removes them on release. It is safe for concurrent use.
type ArtifactStore struct {
	dir     string
	prefix  string
	metrics *observe.Metrics
	now     func() time.Time

	mu   sync.Mutex
	live map[string]*Artifact
}

// StoreOption configures an [ArtifactStore].
type StoreOption func(*ArtifactStore)

// WithPrefix sets the artifact file name prefix.
func WithPrefix(p string) StoreOption {
	return func(s *ArtifactStore) {
		if p != "" {
			s.prefix = p
		}
	}
}

// WithStoreMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithStoreMetrics(m *observe.Metrics) StoreOption {
	return func(s *ArtifactStore) { s.metrics = m }
}

// WithClock replaces the time source used for names and sweeping.
func WithClock(now func() time.Time) StoreOption {
	return func(s *ArtifactStore) { s.now = now }
}

// NewArtifactStore returns a store writing into dir, creating it if needed.
// An empty dir selects a "radiodj" directory under os.TempDir().
func NewArtifactStore(dir string, opts ...StoreOption) (*ArtifactStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "radiodj")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("speech: resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("speech: create artifact dir: %w", err)
	}
	s := &ArtifactStore{
		dir:    abs,
		prefix: DefaultPrefix,
		now:    time.Now,
		live:   make(map[string]*Artifact),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Dir returns the absolute artifact directory.
func (s *ArtifactStore) Dir() string { return s.dir }

// Create writes data to a new file named <prefix>-<unixmillis>-<uuid>.<ext>.
// The file is created exclusively; on a failed write the partial file is
// removed and no artifact is returned.
func (s *ArtifactStore) Create(data []byte, ext string) (*Artifact, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	now := s.now()
	name := fmt.Sprintf("%s-%d-%s.%s", s.prefix, now.UnixMilli(), uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("speech: create artifact: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			slog.Warn("failed to remove partial artifact", "path", path, "err", rerr)
		}
		return nil, fmt.Errorf("speech: write artifact: %w", err)
	}

	a := &Artifact{Path: path, CreatedAt: now}
	s.mu.Lock()
	s.live[path] = a
	s.mu.Unlock()
	s.metrics.ArtifactsLive.Add(context.Background(), 1)
	return a, nil
}

// Release deletes the artifact's file. Releasing an artifact more than once,
// releasing nil, or releasing an artifact whose file is already gone all
// succeed.
func (s *ArtifactStore) Release(a *Artifact) error {
	if a == nil || !a.released.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	_, tracked := s.live[a.Path]
	delete(s.live, a.Path)
	s.mu.Unlock()
	if tracked {
		s.metrics.ArtifactsLive.Add(context.Background(), -1)
	}

	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("speech: release artifact: %w", err)
	}
	return nil
}

// Live returns the number of artifacts created and not yet released.
func (s *ArtifactStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Sweep removes files carrying the store prefix that are older than
// olderThan and not tracked as live. It is meant to run at startup to clear
// files left behind by a crashed process. It returns the number of files
// removed.
func (s *ArtifactStore) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("speech: sweep: %w", err)
	}
	cutoff := s.now().Add(-olderThan)

	var removed int
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), s.prefix+"-") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		s.mu.Lock()
		_, live := s.live[path]
		s.mu.Unlock()
		if live {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
