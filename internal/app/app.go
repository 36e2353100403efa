// Package app wires all radiodj subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP endpoints and the periodic time checks,
// and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithBot, WithDecoder,
// WithSearcher, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/radiodj/internal/announce"
	"github.com/MrWong99/radiodj/internal/config"
	"github.com/MrWong99/radiodj/internal/discord"
	"github.com/MrWong99/radiodj/internal/discord/commands"
	"github.com/MrWong99/radiodj/internal/health"
	"github.com/MrWong99/radiodj/internal/news"
	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/player"
	"github.com/MrWong99/radiodj/internal/radio"
	"github.com/MrWong99/radiodj/internal/speech"
	"github.com/MrWong99/radiodj/pkg/audio"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. A nil LLM means
// every announcement uses a fallback phrase. Populated by main.go via the
// config registry.
type Providers struct {
	LLM   llm.Provider
	TTS   tts.Provider
	Audio audio.Platform
}

// Bot is the Discord front end the app registers its commands and listeners
// with. Implemented by *discord.Bot.
type Bot interface {
	Router() *discord.CommandRouter
	Permissions() *discord.PermissionChecker
	OnPresence(fn discord.PresenceFunc)
	VoiceChannelOf(guildID, userID string) (string, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// App owns all subsystem lifetimes and orchestrates the radio.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	bot        Bot
	metrics    *observe.Metrics
	level      *slog.LevelVar
	generator  *announce.Generator
	artifacts  *speech.ArtifactStore
	news       *news.Store
	sessions   *radio.Sessions
	scheduler  *radio.Scheduler
	autoRadio  *radio.AutoRadio
	player     *player.Player
	decoder    player.Decoder
	searcher   player.Searcher
	nowPlaying *discord.NowPlaying
	health     *health.Handler

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBot attaches the Discord front end. Without it the radio runs headless
// and only reacts to direct calls.
func WithBot(b Bot) Option {
	return func(a *App) { a.bot = b }
}

// WithDecoder injects the audio decoder instead of the ffmpeg pipeline.
func WithDecoder(d player.Decoder) Option {
	return func(a *App) { a.decoder = d }
}

// WithSearcher injects the track search backend instead of YouTube.
func WithSearcher(s player.Searcher) Option {
	return func(a *App) { a.searcher = s }
}

// WithNewsStore injects the news store instead of loading the snapshot file.
func WithNewsStore(s *news.Store) Option {
	return func(a *App) { a.news = s }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets ApplyConfig change the log level of a running process.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: artifact sweep, news
// snapshot loading, player and scheduler construction, and command
// registration on the bot.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if providers == nil || providers.Audio == nil {
		return nil, errors.New("app: an audio platform is required")
	}
	if providers.TTS == nil {
		return nil, errors.New("app: a TTS provider is required")
	}

	// ── 1. Announcement generator ────────────────────────────────────────
	a.initGenerator()

	// ── 2. Speech artifacts ──────────────────────────────────────────────
	if err := a.initArtifacts(); err != nil {
		return nil, fmt.Errorf("app: init artifacts: %w", err)
	}

	// ── 3. News snapshot ─────────────────────────────────────────────────
	a.initNews()

	// ── 4. Player ────────────────────────────────────────────────────────
	if err := a.initPlayer(); err != nil {
		return nil, fmt.Errorf("app: init player: %w", err)
	}

	// ── 5. Scheduler + auto-radio ────────────────────────────────────────
	a.sessions = radio.NewSessions(cfg.Generation.HistorySize)
	a.scheduler = radio.NewScheduler(
		a.generator,
		speech.NewSynthesizer(providers.TTS, a.artifacts),
		a.player,
		a.news,
		a.sessions,
		radio.SchedulerConfig{
			NewsFrequency: cfg.Radio.NewsFrequency,
			NewsTopic:     cfg.Radio.NewsTopic,
			InjectTimeout: cfg.Speech.InjectTimeout,
		},
		radio.WithMetrics(a.metrics),
		radio.WithTrackState(a.player),
	)
	a.autoRadio = radio.NewAutoRadio(a.player, radio.AutoRadioConfig{
		Enabled:     cfg.Radio.AutoRadio,
		ChannelName: cfg.Radio.VoiceChannelName,
		Queries:     cfg.Radio.SearchQueries,
		BatchSize:   cfg.Radio.BatchSize,
		RearmDelay:  cfg.Radio.RearmDelay,
	}, radio.WithAutoRadioMetrics(a.metrics))
	a.closers = append(a.closers, a.autoRadio.Close)

	// ── 6. Discord front end ─────────────────────────────────────────────
	if err := a.initBot(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}

	// ── 7. Health ────────────────────────────────────────────────────────
	a.health = health.New(health.DirWritable("artifacts", a.artifacts.Dir()))

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initGenerator builds the announcement generator from the radio persona and
// the generation settings.
func (a *App) initGenerator() {
	r := a.cfg.Radio
	persona := announce.Persona{
		Name:      r.PersonaName,
		Station:   r.StationName,
		Setting:   r.Setting,
		Traits:    r.Traits,
		NewsTopic: r.NewsTopic,
	}
	g := a.cfg.Generation
	genOpts := []announce.Option{announce.WithMetrics(a.metrics)}
	if len(r.FallbackPhrases) > 0 {
		pb := make(announce.Phrasebook, len(r.FallbackPhrases))
		for intent, lines := range r.FallbackPhrases {
			pb[announce.Intent(intent)] = lines
		}
		genOpts = append(genOpts, announce.WithPhrasebook(pb))
	}
	a.generator = announce.New(a.providers.LLM, announce.Config{
		Persona:         persona,
		Timeout:         g.Timeout,
		Temperature:     g.Temperature,
		MaxTokens:       g.MaxTokens,
		RepeatThreshold: g.RepeatThreshold,
	}, genOpts...)
}

// initArtifacts opens the artifact directory and removes files orphaned by a
// previous run.
func (a *App) initArtifacts() error {
	store, err := speech.NewArtifactStore(a.cfg.Speech.ArtifactDir, speech.WithStoreMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.artifacts = store

	n, err := store.Sweep(a.cfg.Speech.SweepAge)
	if err != nil {
		slog.Warn("artifact sweep failed", "dir", store.Dir(), "err", err)
	} else if n > 0 {
		slog.Info("removed orphaned speech artifacts", "dir", store.Dir(), "count", n)
	}
	return nil
}

// initNews loads the news snapshot unless a store was injected. A missing or
// unreadable snapshot yields an empty store; the radio keeps playing without
// news segments.
func (a *App) initNews() {
	if a.news != nil {
		return
	}
	store, err := news.Load(a.cfg.News.SnapshotPath)
	if err != nil {
		slog.Error("failed to load news snapshot, continuing without news", "path", a.cfg.News.SnapshotPath, "err", err)
		store = news.NewStore(nil)
	}
	a.news = store
	slog.Info("loaded news snapshot", "path", a.cfg.News.SnapshotPath, "items", store.Len())
}

// initPlayer creates the player with its decoder and search backend. The
// event callbacks reach the scheduler and auto-radio, which are built after
// the player.
func (a *App) initPlayer() error {
	if a.decoder == nil {
		a.decoder = &player.FFmpeg{
			Path:      a.cfg.Player.FFmpegPath,
			YTDLPPath: a.cfg.Player.YTDLPPath,
		}
	}
	if a.searcher == nil && a.cfg.Player.YouTubeAPIKey != "" {
		yt, err := player.NewYouTube(a.cfg.Player.YouTubeAPIKey)
		if err != nil {
			return err
		}
		a.searcher = yt
	}
	if a.searcher == nil {
		slog.Warn("no search backend configured; play and auto-radio cannot find tracks")
	}

	a.player = player.New(a.providers.Audio, a.decoder, a.searcher,
		player.Config{MusicVolume: a.cfg.Player.Volume},
		player.WithMetrics(a.metrics),
		player.WithEvents(player.Events{
			OnTrackStart: a.onTrackStart,
			OnQueueEmpty: a.onQueueEmpty,
		}),
	)
	a.closers = append(a.closers, a.player.Close)
	return nil
}

// initBot registers the slash commands and the presence listener.
func (a *App) initBot(ctx context.Context) error {
	if a.bot == nil {
		slog.Info("no discord front end attached")
		return nil
	}
	if id := a.cfg.Radio.NowPlayingChannelID; id != "" {
		a.nowPlaying = discord.NewNowPlaying(a.bot, id, a.cfg.Radio.StationName)
	}
	if _, err := commands.NewRadioCommands(a.bot.Router(), commands.RadioConfig{
		Player:    a.player,
		AutoRadio: a.autoRadio,
		Announcer: a.scheduler,
		Sessions:  a.sessions,
		Voice:     a.bot,
		Perms:     a.bot.Permissions(),
		Context:   ctx,
	}); err != nil {
		return fmt.Errorf("app: register commands: %w", err)
	}
	a.bot.OnPresence(func(ctx context.Context, ev radio.PresenceEvent) {
		a.autoRadio.OnPresenceChange(ctx, ev)
	})
	return nil
}

// ─── Player events ───────────────────────────────────────────────────────────

func (a *App) onTrackStart(ctx context.Context, guildID string, t radio.Track) {
	if a.nowPlaying != nil {
		a.nowPlaying.Post(ctx, guildID, t)
	}
	a.scheduler.OnTrackStart(ctx, guildID, t)
}

func (a *App) onQueueEmpty(ctx context.Context, guildID, channelID string) {
	a.autoRadio.OnQueueEmpty(ctx, guildID, channelID)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Player returns the music player.
func (a *App) Player() *player.Player { return a.player }

// Scheduler returns the announcement scheduler.
func (a *App) Scheduler() *radio.Scheduler { return a.scheduler }

// AutoRadio returns the presence-driven auto starter.
func (a *App) AutoRadio() *radio.AutoRadio { return a.autoRadio }

// News returns the news store.
func (a *App) News() *news.Store { return a.news }

// Handler returns the HTTP handler serving /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	return observe.Middleware(a.metrics)(mux)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP endpoints and the periodic time checks and blocks until
// ctx is cancelled. When ctx is done, Run returns context.Canceled (or the
// underlying cause).
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		g.Go(func() error { return a.serveHTTP(gctx, addr) })
	}
	if every := a.cfg.Radio.TimeCheckInterval; every > 0 {
		g.Go(func() error {
			a.runTimeChecks(gctx, every)
			return nil
		})
	}

	slog.Info("app running",
		"auto_radio", a.autoRadio.Enabled(),
		"news_items", a.news.Len(),
		"news_frequency", a.scheduler.NewsFrequency(),
	)
	<-gctx.Done()

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) serveHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	return nil
}

// runTimeChecks announces the Zulu time in every playing guild each interval.
func (a *App) runTimeChecks(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.AnnounceTime(ctx)
		}
	}
}

// AnnounceTime announces the Zulu time in every guild that is currently
// playing music. Guilds are served concurrently; failures are logged.
func (a *App) AnnounceTime(ctx context.Context) {
	var wg sync.WaitGroup
	for _, guildID := range a.player.Guilds() {
		if !a.player.IsPlaying(guildID) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.scheduler.AnnounceZuluTime(ctx, guildID); err != nil {
				slog.Warn("time check failed", "guild_id", guildID, "err", err)
			}
		}()
	}
	wg.Wait()
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the live-reloadable differences between old and new
// and logs the sections that need a restart. It matches the callback
// signature of [config.NewWatcher].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.NewsFrequencyChanged {
		a.scheduler.SetNewsFrequency(d.NewNewsFrequency)
		slog.Info("news frequency changed", "news_frequency", a.scheduler.NewsFrequency())
	}
	if d.NewsPathChanged {
		if err := a.news.Reload(d.NewNewsPath); err != nil {
			slog.Warn("news reload failed, keeping previous snapshot", "path", d.NewNewsPath, "err", err)
		} else {
			slog.Info("news snapshot reloaded", "path", d.NewNewsPath, "items", a.news.Len())
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		if n := a.artifacts.Live(); n > 0 {
			slog.Warn("speech artifacts still live at shutdown", "count", n)
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
