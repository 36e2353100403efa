// Command radiodj is the main entry point for the radiodj Discord radio bot.
//
// Usage:
//
//	radiodj [-config config.yaml]             run the bot
//	radiodj [-config config.yaml] fetch-news  refresh the news snapshot and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/radiodj/internal/app"
	"github.com/MrWong99/radiodj/internal/config"
	discordbot "github.com/MrWong99/radiodj/internal/discord"
	"github.com/MrWong99/radiodj/internal/news"
	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/pkg/audio"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file; empty reads only the environment")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, path, err := loadConfig(*configPath, flagSet("config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiodj: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "radiodj",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Speech.Language)

	llmProvider, err := buildLLM(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build llm providers", "err", err)
		return 1
	}

	switch cmd := flag.Arg(0); cmd {
	case "":
	case "fetch-news":
		return fetchNews(ctx, cfg, llmProvider)
	default:
		fmt.Fprintf(os.Stderr, "radiodj: unknown command %q\n", cmd)
		return 2
	}

	slog.Info("radiodj starting",
		"version", version,
		"config", path,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ttsProvider, err := buildTTS(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build tts providers", "err", err)
		return 1
	}

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:    cfg.Discord.Token,
		GuildID:  cfg.Discord.GuildID,
		DJRoleID: cfg.Discord.DJRoleID,
		Status:   cfg.Discord.Status,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	// The voice platform rides on the bot's gateway session.
	reg.RegisterAudio("discord", func(config.ProviderEntry) (audio.Platform, error) {
		return bot.Platform(), nil
	})
	platform, err := reg.CreateAudio(cfg.Providers.Audio)
	if err != nil {
		slog.Error("failed to create audio platform", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg,
		&app.Providers{LLM: llmProvider, TTS: ttsProvider, Audio: platform},
		app.WithBot(bot),
		app.WithMetrics(metrics),
		app.WithLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return application.Run(gctx) })

	// ── Config hot reload ─────────────────────────────────────────────────────
	if path != "" {
		w, err := config.NewWatcher(path, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	code := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// loadConfig reads the config file at path. A missing file at the default
// path falls back to the environment alone; a missing file that was asked
// for explicitly is an error. The returned path is "" when no file was read.
func loadConfig(path string, explicit bool) (*config.Config, string, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("config file %q not found", path)
		}
		return nil, "", err
	}
	return cfg, path, nil
}

// flagSet reports whether the named flag was passed on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// fetchNews refreshes the news snapshot from Reddit and exits.
func fetchNews(ctx context.Context, cfg *config.Config, p llm.Provider) int {
	var opts []news.FetchOption
	if cfg.News.Subreddit != "" {
		opts = append(opts, news.WithSubreddit(cfg.News.Subreddit))
	}
	if cfg.News.Limit > 0 {
		opts = append(opts, news.WithLimit(cfg.News.Limit))
	}
	if cfg.Radio.StationName != "" {
		opts = append(opts, news.WithStation(cfg.Radio.StationName))
	}
	topic := cfg.Radio.NewsTopic
	if topic == "" {
		topic = "Star Citizen"
	}

	stories, err := news.NewFetcher(p, topic, opts...).Fetch(ctx)
	if err != nil {
		slog.Error("failed to fetch news", "err", err)
		return 1
	}
	if err := news.Save(cfg.News.SnapshotPath, stories, time.Now()); err != nil {
		slog.Error("failed to save news snapshot", "err", err)
		return 1
	}
	slog.Info("news snapshot saved", "path", cfg.News.SnapshotPath, "stories", len(stories))
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         radiodj - startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", describeChain(cfg.Providers.LLM))
	printProvider("TTS", describeChain(cfg.Providers.TTS))
	printProvider("Audio", cfg.Providers.Audio.Name)
	printProvider("Station", cfg.Radio.StationName)
	printProvider("News every", fmt.Sprintf("%d songs", cfg.Radio.NewsFrequency))
	if cfg.Radio.AutoRadio {
		printProvider("Auto-radio", cfg.Radio.VoiceChannelName)
	} else {
		printProvider("Auto-radio", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printProvider("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}
