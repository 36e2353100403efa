package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/resilience"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
	"github.com/MrWong99/radiodj/pkg/provider/tts/mock"
)

func newStore(t *testing.T, opts ...StoreOption) *ArtifactStore {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	s, err := NewArtifactStore(t.TempDir(), append([]StoreOption{WithStoreMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	return s
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return entries
}

func TestArtifactStore_CreateNaming(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	a, err := s.Create([]byte("ID3"), "mp3")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := filepath.Base(a.Path)
	re := regexp.MustCompile(`^ava-\d+-[0-9a-f-]{36}\.mp3$`)
	if !re.MatchString(name) {
		t.Errorf("name %q does not match %s", name, re)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil || string(data) != "ID3" {
		t.Errorf("content = %q, %v", data, err)
	}
	if s.Live() != 1 {
		t.Errorf("Live() = %d, want 1", s.Live())
	}

	b, err := s.Create([]byte("x"), ".wav")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Path == b.Path {
		t.Error("two artifacts share a path")
	}
	if filepath.Ext(b.Path) != ".wav" {
		t.Errorf("ext = %q", filepath.Ext(b.Path))
	}
}

func TestArtifactStore_ReleaseIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	a, err := s.Create([]byte("ID3"), "mp3")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := range 2 {
		if err := s.Release(a); err != nil {
			t.Fatalf("Release #%d: %v", i+1, err)
		}
	}
	if _, err := os.Stat(a.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
	if s.Live() != 0 {
		t.Errorf("Live() = %d, want 0", s.Live())
	}
	if err := s.Release(nil); err != nil {
		t.Errorf("Release(nil) = %v", err)
	}
}

func TestArtifactStore_ReleaseMissingFile(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	a, err := s.Create([]byte("ID3"), "mp3")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.Remove(a.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Release(a); err != nil {
		t.Errorf("Release of missing file = %v, want nil", err)
	}
}

func TestArtifactStore_CreateFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := os.RemoveAll(s.Dir()); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	a, err := s.Create([]byte("ID3"), "mp3")
	if err == nil {
		t.Fatalf("Create into missing dir succeeded: %s", a.Path)
	}
	if s.Live() != 0 {
		t.Errorf("Live() = %d, want 0", s.Live())
	}
}

func TestArtifactStore_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := newStore(t, WithClock(func() time.Time { return now }))

	stale := filepath.Join(s.Dir(), "ava-1-stale.mp3")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := now.Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	foreign := filepath.Join(s.Dir(), "keep.txt")
	if err := os.WriteFile(foreign, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(foreign, old, old); err != nil {
		t.Fatal(err)
	}
	live, err := s.Create([]byte("ID3"), "mp3")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(live.Path, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale artifact survived")
	}
	for _, p := range []string{foreign, live.Path} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s removed: %v", filepath.Base(p), err)
		}
	}
}

func TestSynthesizer_FallsThroughChain(t *testing.T) {
	t.Parallel()

	a := &mock.Provider{Err: errors.New("azure: 401")}
	b := &mock.Provider{Audio: &tts.Audio{Data: []byte("MP3"), Format: tts.FormatMP3}}
	chain := resilience.NewTTSFallback(resilience.FallbackConfig{})
	chain.Add("azure", a)
	chain.Add("gtranslate", b)

	store := newStore(t)
	syn := NewSynthesizer(chain, store)

	art, err := syn.Synthesize(context.Background(), "Next up: Song X")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if a.CallCount() != 1 || b.CallCount() != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.CallCount(), b.CallCount())
	}
	if got := len(dirEntries(t, store.Dir())); got != 1 {
		t.Errorf("files = %d, want 1", got)
	}
	if err := syn.Release(art); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := len(dirEntries(t, store.Dir())); got != 0 {
		t.Errorf("files after release = %d, want 0", got)
	}
}

func TestSynthesizer_AllFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    tts.Provider
	}{
		{name: "all backends fail", p: func() tts.Provider {
			c := resilience.NewTTSFallback(resilience.FallbackConfig{})
			c.Add("azure", &mock.Provider{Err: errors.New("down")})
			c.Add("gtranslate", &mock.Provider{Err: errors.New("down")})
			return c
		}()},
		{name: "empty chain", p: resilience.NewTTSFallback(resilience.FallbackConfig{})},
		{name: "empty audio", p: &mock.Provider{Audio: &tts.Audio{Format: tts.FormatMP3}}},
		{name: "nil provider", p: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newStore(t)
			art, err := NewSynthesizer(tc.p, store).Synthesize(context.Background(), "hello")
			if !errors.Is(err, ErrSynthesisUnavailable) {
				t.Fatalf("err = %v, want ErrSynthesisUnavailable", err)
			}
			if art != nil {
				t.Error("artifact returned on failure")
			}
			if got := len(dirEntries(t, store.Dir())); got != 0 {
				t.Errorf("files = %d, want 0", got)
			}
		})
	}
}
