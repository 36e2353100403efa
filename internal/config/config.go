// Package config provides the configuration schema, loader, and provider registry
// for the radiodj announcement engine.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the radiodj process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultNewsFrequency   = 3
	DefaultBatchSize       = 20
	DefaultRearmDelay      = 5 * time.Second
	DefaultProviderTimeout = 15 * time.Second
	DefaultInjectTimeout   = 2 * time.Minute
	DefaultGenTimeout      = 10 * time.Second
	DefaultTemperature     = 0.9
	DefaultMaxTokens       = 100
	DefaultHistorySize     = 5
	DefaultRepeatThreshold = 0.97
	DefaultMusicVolume     = 0.35
	DefaultSweepAge        = time.Hour
	DefaultNewsPath        = "news.json"
)

// Config is the root configuration structure for radiodj.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Discord    DiscordConfig    `yaml:"discord"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Radio      RadioConfig      `yaml:"radio"`
	News       NewsConfig       `yaml:"news"`
	Speech     SpeechConfig     `yaml:"speech"`
	Generation GenerationConfig `yaml:"generation"`
	Player     PlayerConfig     `yaml:"player"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	// Token is the bot token. Overridden by TOKEN or DISCORD_TOKEN.
	Token string `yaml:"token"`

	// GuildID restricts slash command registration to one guild. Empty
	// registers the commands globally.
	GuildID string `yaml:"guild_id"`

	// DJRoleID is the role allowed to skip and stop playback. Empty allows
	// everyone.
	DJRoleID string `yaml:"dj_role_id"`

	// Status is the activity text shown on the bot's profile.
	Status string `yaml:"status"`
}

// ProvidersConfig declares the provider fallback chains. Entries are tried
// in order; each Name is looked up in the [Registry].
type ProvidersConfig struct {
	LLM   []ProviderEntry `yaml:"llm"`
	TTS   []ProviderEntry `yaml:"tts"`
	Audio ProviderEntry   `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "azure").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model or voice within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// Option returns Options[key] as a string, or "" when it is absent or not a
// scalar.
func (e ProviderEntry) Option(key string) string {
	switch v := e.Options[key].(type) {
	case string:
		return v
	case bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	return ""
}

// RadioConfig configures the station persona and announcement cadence.
type RadioConfig struct {
	StationName string   `yaml:"station_name"`
	PersonaName string   `yaml:"persona_name"`
	Setting     string   `yaml:"setting"`
	Traits      []string `yaml:"traits"`
	NewsTopic   string   `yaml:"news_topic"`

	// NewsFrequency is the number of songs between news segments.
	// Overridden by NEWS_FREQUENCY.
	NewsFrequency int `yaml:"news_frequency"`

	// AutoRadio enables the presence-driven auto start. Overridden by
	// AUTO_RADIO_MODE.
	AutoRadio bool `yaml:"auto_radio"`

	// VoiceChannelName is the channel watched for auto start. Overridden by
	// VOICE_CHANNEL_NAME.
	VoiceChannelName string `yaml:"voice_channel_name"`

	SearchQueries []string      `yaml:"search_queries"`
	BatchSize     int           `yaml:"batch_size"`
	RearmDelay    time.Duration `yaml:"rearm_delay"`

	// TimeCheckInterval, when positive, announces the Zulu time in every
	// playing guild at this interval.
	TimeCheckInterval time.Duration `yaml:"time_check_interval"`

	// FallbackPhrases overrides the canned lines per intent ("track", "news",
	// "time").
	FallbackPhrases map[string][]string `yaml:"fallback_phrases"`

	// NowPlayingChannelID, when set, receives a text message per track.
	NowPlayingChannelID string `yaml:"now_playing_channel_id"`
}

// NewsConfig locates the news snapshot and configures the fetcher.
type NewsConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	Subreddit    string `yaml:"subreddit"`
	Limit        int    `yaml:"limit"`
}

// SpeechConfig configures synthesis and playback of announcements.
type SpeechConfig struct {
	// ArtifactDir holds synthesized audio files. Empty uses the system
	// temporary directory.
	ArtifactDir string `yaml:"artifact_dir"`

	// SweepAge is the minimum age of orphaned artifacts removed at startup.
	SweepAge time.Duration `yaml:"sweep_age"`

	// ProviderTimeout bounds each TTS provider attempt.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// InjectTimeout bounds playback of one announcement.
	InjectTimeout time.Duration `yaml:"inject_timeout"`

	// Language is the language code passed to providers that need one.
	Language string `yaml:"language"`
}

// GenerationConfig tunes the LLM calls.
type GenerationConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	HistorySize int           `yaml:"history_size"`

	// RepeatThreshold rejects outputs whose Jaro-Winkler similarity to a
	// recent announcement is at least this value. Negative disables the
	// check.
	RepeatThreshold float64 `yaml:"repeat_threshold"`
}

// PlayerConfig configures music search and decoding.
type PlayerConfig struct {
	// YouTubeAPIKey enables the YouTube Data API search. Overridden by
	// YOUTUBE_API_KEY.
	YouTubeAPIKey string `yaml:"youtube_api_key"`

	FFmpegPath string `yaml:"ffmpeg_path"`
	YTDLPPath  string `yaml:"ytdlp_path"`

	// Volume scales music playback in (0, 2].
	Volume float64 `yaml:"volume"`
}
