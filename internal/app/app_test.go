package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/radiodj/internal/app"
	"github.com/MrWong99/radiodj/internal/config"
	"github.com/MrWong99/radiodj/internal/discord"
	"github.com/MrWong99/radiodj/internal/news"
	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/radio"
	"github.com/MrWong99/radiodj/pkg/audio"
	audiomock "github.com/MrWong99/radiodj/pkg/audio/mock"
	ttsmock "github.com/MrWong99/radiodj/pkg/provider/tts/mock"
)

// testConfig returns a defaulted config with auto-radio on and the HTTP
// listener off.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Radio: config.RadioConfig{
			StationName:      "Test FM",
			AutoRadio:        true,
			VoiceChannelName: "radio",
			SearchQueries:    []string{"synthwave"},
		},
		News:   config.NewsConfig{SnapshotPath: filepath.Join(t.TempDir(), "news.json")},
		Speech: config.SpeechConfig{ArtifactDir: t.TempDir()},
	}
	config.ApplyDefaults(cfg)
	cfg.Server.ListenAddr = ""
	return cfg
}

// stream is an endless track: one frame every couple of milliseconds until
// closed or its context ends.
type stream struct {
	ctx    context.Context
	mu     sync.Mutex
	closed bool
}

func (s *stream) Read(b []byte) (int, error) {
	select {
	case <-s.ctx.Done():
		return 0, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	return copy(b, make([]byte, len(b))), nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// decoder plays URLs as endless streams and local files as three frames.
type decoder struct {
	mu      sync.Mutex
	sources []string
}

func (d *decoder) Open(ctx context.Context, source string, _ float64) (io.ReadCloser, error) {
	d.mu.Lock()
	d.sources = append(d.sources, source)
	d.mu.Unlock()
	if filepath.IsAbs(source) {
		return io.NopCloser(bytes.NewReader(make([]byte, 3*audio.FrameBytes))), nil
	}
	return &stream{ctx: ctx}, nil
}

func (d *decoder) files() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sources {
		if filepath.IsAbs(s) {
			n++
		}
	}
	return n
}

type searcher struct{}

func (searcher) Search(_ context.Context, query string) ([]radio.Track, error) {
	return []radio.Track{
		{Title: query + " one", Author: "Band", URL: "https://example.com/1"},
		{Title: query + " two", Author: "Band", URL: "https://example.com/2"},
	}, nil
}

// fakeBot records what the app registers.
type fakeBot struct {
	router *discord.CommandRouter

	mu       sync.Mutex
	presence discord.PresenceFunc
	embeds   []*discordgo.MessageEmbed
}

func newFakeBot() *fakeBot { return &fakeBot{router: discord.NewCommandRouter()} }

func (b *fakeBot) Router() *discord.CommandRouter { return b.router }

func (b *fakeBot) Permissions() *discord.PermissionChecker {
	return discord.NewPermissionChecker("")
}

func (b *fakeBot) OnPresence(fn discord.PresenceFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presence = fn
}

func (b *fakeBot) VoiceChannelOf(string, string) (string, error) { return "c1", nil }

func (b *fakeBot) SendEmbed(_ string, e *discordgo.MessageEmbed) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.embeds = append(b.embeds, e)
	return nil
}

func (b *fakeBot) fire(ctx context.Context, ev radio.PresenceEvent) {
	b.mu.Lock()
	fn := b.presence
	b.mu.Unlock()
	fn(ctx, ev)
}

func (b *fakeBot) embedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.embeds)
}

type env struct {
	app      *app.App
	platform *audiomock.Platform
	tts      *ttsmock.Provider
	dec      *decoder
	bot      *fakeBot
}

func newEnv(t *testing.T, cfg *config.Config, opts ...app.Option) *env {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	e := &env{
		platform: &audiomock.Platform{},
		tts:      &ttsmock.Provider{},
		dec:      &decoder{},
		bot:      newFakeBot(),
	}
	opts = append([]app.Option{
		app.WithMetrics(m),
		app.WithBot(e.bot),
		app.WithDecoder(e.dec),
		app.WithSearcher(searcher{}),
	}, opts...)
	e.app, err = app.New(context.Background(), cfg, &app.Providers{TTS: e.tts, Audio: e.platform}, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.app.Shutdown(ctx)
	})
	return e
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_RequiresProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	tests := []struct {
		name      string
		providers *app.Providers
	}{
		{"nil providers", nil},
		{"no audio", &app.Providers{TTS: &ttsmock.Provider{}}},
		{"no tts", &app.Providers{Audio: &audiomock.Platform{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := app.New(context.Background(), cfg, tt.providers); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_MalformedNewsSnapshot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if err := os.WriteFile(cfg.News.SnapshotPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := newEnv(t, cfg)
	if got := e.app.News().Len(); got != 0 {
		t.Errorf("news items = %d, want 0", got)
	}
}

func TestNew_RegistersRadioCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testConfig(t))
	cmds := e.bot.router.ApplicationCommands()
	if len(cmds) != 1 || cmds[0].Name != "radio" {
		t.Fatalf("commands = %v, want [radio]", cmds)
	}
	e.bot.mu.Lock()
	registered := e.bot.presence != nil
	e.bot.mu.Unlock()
	if !registered {
		t.Error("presence listener not registered")
	}
}

func TestApp_AutoRadioAnnouncesTracks(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Radio.NowPlayingChannelID = "text-1"
	e := newEnv(t, cfg)

	e.bot.fire(context.Background(), radio.PresenceEvent{
		GuildID: "g1", ChannelID: "c1", ChannelName: "radio", UserID: "u1",
	})

	eventually(t, func() bool { return e.app.Player().IsPlaying("g1") }, "playback")
	if calls := e.platform.Calls(); len(calls) != 1 || calls[0].ChannelID != "c1" {
		t.Fatalf("connect calls = %v", calls)
	}
	eventually(t, func() bool { return e.dec.files() >= 1 }, "announcement playback")
	eventually(t, func() bool { return e.bot.embedCount() >= 1 }, "now playing embed")

	spoken := e.tts.Spoken()
	if len(spoken) < 1 {
		t.Fatal("nothing synthesized")
	}
	if !strings.Contains(spoken[0], "synthwave one") {
		t.Errorf("first announcement %q does not name the track", spoken[0])
	}
	eventually(t, func() bool {
		entries, err := os.ReadDir(cfg.Speech.ArtifactDir)
		return err == nil && len(entries) == 0
	}, "artifact release")
}

func TestApp_IgnoresOtherChannels(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testConfig(t))
	e.bot.fire(context.Background(), radio.PresenceEvent{
		GuildID: "g1", ChannelID: "c2", ChannelName: "lobby", UserID: "u1",
	})
	if calls := e.platform.Calls(); len(calls) != 0 {
		t.Errorf("connect calls = %v, want none", calls)
	}
}

func TestApp_AnnounceTime(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testConfig(t))
	ctx := context.Background()

	// No guild is playing yet.
	e.app.AnnounceTime(ctx)
	if got := e.tts.CallCount(); got != 0 {
		t.Fatalf("synth calls with no guilds = %d", got)
	}

	p := e.app.Player()
	if err := p.Connect(ctx, "g1", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(ctx, "g1", []radio.Track{{Title: "Song", URL: "https://example.com/1"}}); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return e.dec.files() >= 1 }, "track introduction")

	before := e.tts.CallCount()
	e.app.AnnounceTime(ctx)
	if got := e.tts.CallCount(); got != before+1 {
		t.Fatalf("synth calls = %d, want %d", got, before+1)
	}
	if text := e.tts.Spoken()[before]; !strings.Contains(text, "Zulu") {
		t.Errorf("time check text = %q", text)
	}
}

func TestApp_Handler(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testConfig(t))
	srv := httptest.NewServer(e.app.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()

	var level slog.LevelVar
	old := testConfig(t)
	e := newEnv(t, old, app.WithLevelVar(&level))

	snapshot := filepath.Join(t.TempDir(), "fresh.json")
	if err := os.WriteFile(snapshot, []byte(`[{"title":"Fresh story"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	updated := *old
	updated.Server.LogLevel = config.LogDebug
	updated.Radio.NewsFrequency = 7
	updated.News.SnapshotPath = snapshot
	e.app.ApplyConfig(old, &updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
	if got := e.app.Scheduler().NewsFrequency(); got != 7 {
		t.Errorf("NewsFrequency() = %d, want 7", got)
	}
	if got := e.app.News().Len(); got != 1 {
		t.Errorf("news items = %d, want 1", got)
	}
}

func TestApp_ApplyConfig_BadSnapshotKeepsItems(t *testing.T) {
	t.Parallel()

	old := testConfig(t)
	store := news.NewStore([]news.Item{{Title: "Old story"}})
	e := newEnv(t, old, app.WithNewsStore(store))

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	updated := *old
	updated.News.SnapshotPath = bad
	e.app.ApplyConfig(old, &updated)

	if item, ok := store.Random(); !ok || item.Title != "Old story" {
		t.Errorf("Random() = %v, %v; want the old story", item, ok)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Radio.TimeCheckInterval = time.Hour
	e := newEnv(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.app.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
