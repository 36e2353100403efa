package config_test

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/radiodj/internal/config"
	"github.com/MrWong99/radiodj/pkg/audio"
	audiomock "github.com/MrWong99/radiodj/pkg/audio/mock"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
	llmmock "github.com/MrWong99/radiodj/pkg/provider/llm/mock"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
	ttsmock "github.com/MrWong99/radiodj/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9100"
  log_level: debug

discord:
  token: bot-token
  guild_id: "123"

providers:
  llm:
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
    - name: ollama
      base_url: http://localhost:11434
      model: llama3
  tts:
    - name: azure
      api_key: az-test
      model: en-US-JennyNeural
      options:
        region: westeurope
    - name: gtranslate
  audio:
    name: discord

radio:
  station_name: Night Shift FM
  persona_name: Ava
  news_topic: Star Citizen
  news_frequency: 4
  auto_radio: true
  voice_channel_name: "radio"
  search_queries: ["synthwave", "lofi"]
  batch_size: 10
  rearm_delay: 3s
  time_check_interval: 30m
  fallback_phrases:
    track:
      - "Up next: {title}."

news:
  snapshot_path: /var/lib/radiodj/news.json

speech:
  artifact_dir: /tmp/radiodj
  provider_timeout: 20s

generation:
  temperature: 1.1
  max_tokens: 80
  history_size: 8

player:
  volume: 0.5
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9100" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9100")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if len(cfg.Providers.LLM) != 2 || cfg.Providers.LLM[1].Name != "ollama" {
		t.Errorf("providers.llm: got %+v", cfg.Providers.LLM)
	}
	if got := cfg.Providers.TTS[0].Option("region"); got != "westeurope" {
		t.Errorf("providers.tts[0].options.region: got %q", got)
	}
	if cfg.Radio.NewsFrequency != 4 {
		t.Errorf("radio.news_frequency: got %d, want 4", cfg.Radio.NewsFrequency)
	}
	if cfg.Radio.RearmDelay != 3*time.Second {
		t.Errorf("radio.rearm_delay: got %s, want 3s", cfg.Radio.RearmDelay)
	}
	if cfg.Radio.TimeCheckInterval != 30*time.Minute {
		t.Errorf("radio.time_check_interval: got %s, want 30m", cfg.Radio.TimeCheckInterval)
	}
	if got := cfg.Radio.FallbackPhrases["track"]; len(got) != 1 {
		t.Errorf("radio.fallback_phrases.track: got %v", got)
	}
	if cfg.Speech.ProviderTimeout != 20*time.Second {
		t.Errorf("speech.provider_timeout: got %s", cfg.Speech.ProviderTimeout)
	}
	// Unset values receive defaults.
	if cfg.Speech.InjectTimeout != config.DefaultInjectTimeout {
		t.Errorf("speech.inject_timeout: got %s, want default", cfg.Speech.InjectTimeout)
	}
	if cfg.Generation.Timeout != config.DefaultGenTimeout {
		t.Errorf("generation.timeout: got %s, want default", cfg.Generation.Timeout)
	}
	if cfg.Generation.HistorySize != 8 {
		t.Errorf("generation.history_size: got %d, want 8", cfg.Generation.HistorySize)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): unexpected error: %v", doc, err)
		}
		if cfg.Radio.NewsFrequency != config.DefaultNewsFrequency {
			t.Errorf("news_frequency default: got %d", cfg.Radio.NewsFrequency)
		}
		if cfg.Generation.HistorySize != config.DefaultHistorySize {
			t.Errorf("history_size default: got %d", cfg.Generation.HistorySize)
		}
		if len(cfg.Providers.TTS) != 2 || cfg.Providers.TTS[0].Name != "azure" || cfg.Providers.TTS[1].Name != "gtranslate" {
			t.Errorf("tts default chain: got %+v", cfg.Providers.TTS)
		}
		if cfg.Player.Volume != config.DefaultMusicVolume {
			t.Errorf("player.volume default: got %v", cfg.Player.Volume)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("radio:\n  news_frequncy: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestProviderEntry_Option(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{
		"region": "eastus",
		"slow":   true,
		"limit":  3,
		"nested": map[string]any{"a": 1},
	}}
	tests := []struct {
		key  string
		want string
	}{
		{"region", "eastus"},
		{"slow", "true"},
		{"limit", "3"},
		{"nested", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := e.Option(tt.key); got != tt.want {
			t.Errorf("Option(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	if _, err := reg.CreateLLM(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: expected ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateTTS(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS: expected ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateAudio(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateAudio: expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantLLM := &llmmock.Provider{}
	wantTTS := &ttsmock.Provider{}
	wantAudio := &audiomock.Platform{}
	reg.RegisterLLM("stub", func(config.ProviderEntry) (llm.Provider, error) { return wantLLM, nil })
	reg.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) { return wantTTS, nil })
	reg.RegisterAudio("stub", func(config.ProviderEntry) (audio.Platform, error) { return wantAudio, nil })

	entry := config.ProviderEntry{Name: "stub"}
	if got, err := reg.CreateLLM(entry); err != nil || got != wantLLM {
		t.Errorf("CreateLLM = %v, %v", got, err)
	}
	if got, err := reg.CreateTTS(entry); err != nil || got != wantTTS {
		t.Errorf("CreateTTS = %v, %v", got, err)
	}
	if got, err := reg.CreateAudio(entry); err != nil || got != wantAudio {
		t.Errorf("CreateAudio = %v, %v", got, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_CreateTTSChain(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterTTS("azure", func(e config.ProviderEntry) (tts.Provider, error) {
		if e.APIKey == "" {
			return nil, fmt.Errorf("azure: key required: %w", tts.ErrNotConfigured)
		}
		return &ttsmock.Provider{}, nil
	})
	reg.RegisterTTS("gtranslate", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	chain, skipped, err := reg.CreateTTSChain(config.DefaultTTSChain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 || chain[0].Name != "gtranslate" {
		t.Errorf("chain = %+v, want only gtranslate", chain)
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], tts.ErrNotConfigured) {
		t.Errorf("skipped = %v", skipped)
	}

	_, _, err = reg.CreateTTSChain([]config.ProviderEntry{{Name: "missing"}})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_CreateLLMChain(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		if e.APIKey == "" {
			return nil, errors.New("openai: apiKey must not be empty")
		}
		return &llmmock.Provider{}, nil
	})

	chain, skipped, err := reg.CreateLLMChain([]config.ProviderEntry{{Name: "openai"}, {Name: "openai", APIKey: "sk"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 || len(skipped) != 1 {
		t.Errorf("chain=%d skipped=%d, want 1 and 1", len(chain), len(skipped))
	}

	if _, _, err := reg.CreateLLMChain([]config.ProviderEntry{{Name: "groq"}}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.in.Level(); got != tt.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
