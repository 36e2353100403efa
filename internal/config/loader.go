package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":   {"azure", "gtranslate", "elevenlabs", "coqui"},
	"audio": {"discord"},
}

// ValidIntents lists the keys accepted in radio.fallback_phrases.
var ValidIntents = []string{"track", "news", "time"}

// LookupEnv matches the signature of [os.LookupEnv].
type LookupEnv func(key string) (string, bool)

// Load reads the YAML configuration file at path, overlays the process
// environment and returns a validated [Config]. An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadEnv(path, os.LookupEnv)
}

// LoadEnv is [Load] with an explicit environment lookup.
func LoadEnv(path string, env LookupEnv) (*Config, error) {
	if path == "" {
		return build(nil, env)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := build(f, env)
	if err != nil {
		return nil, fmt.Errorf("config: load %q: %w", path, err)
	}
	return cfg, nil
}

// build decodes r when non-nil, overlays env, fills defaults and validates.
func build(r io.Reader, env LookupEnv) (*Config, error) {
	cfg := &Config{}
	if r != nil {
		if err := decode(r, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, env); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays the environment variables the bot has always honoured.
// Set variables win over file values.
func ApplyEnv(cfg *Config, env LookupEnv) error {
	if env == nil {
		return nil
	}
	get := func(key string) (string, bool) {
		v, ok := env(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TOKEN"); ok {
		cfg.Discord.Token = v
	}
	if v, ok := get("DISCORD_TOKEN"); ok {
		cfg.Discord.Token = v
	}

	if v, ok := get("OPENAI_API_KEY"); ok {
		cfg.Providers.LLM = withKey(cfg.Providers.LLM, "openai", v, nil)
	}
	key, hasKey := get("AZURE_SPEECH_KEY")
	region, hasRegion := get("AZURE_SPEECH_REGION")
	if hasKey || hasRegion {
		opts := map[string]any{}
		if hasRegion {
			opts["region"] = region
		}
		if len(cfg.Providers.TTS) == 0 {
			cfg.Providers.TTS = DefaultTTSChain()
		}
		cfg.Providers.TTS = withKey(cfg.Providers.TTS, "azure", key, opts)
	}

	var errs []error
	if v, ok := get("NEWS_FREQUENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NEWS_FREQUENCY %q is not an integer", v))
		} else {
			cfg.Radio.NewsFrequency = n
		}
	}
	if v, ok := get("AUTO_RADIO_MODE"); ok {
		cfg.Radio.AutoRadio = v == "true"
	}
	if v, ok := get("VOICE_CHANNEL_NAME"); ok {
		cfg.Radio.VoiceChannelName = v
	}
	if v, ok := get("YOUTUBE_API_KEY"); ok {
		cfg.Player.YouTubeAPIKey = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	return errors.Join(errs...)
}

// withKey fills the API key of the first entry named name, appending a new
// entry when none exists. Non-empty opts are merged into the entry's Options.
func withKey(chain []ProviderEntry, name, key string, opts map[string]any) []ProviderEntry {
	i := slices.IndexFunc(chain, func(e ProviderEntry) bool { return e.Name == name })
	if i < 0 {
		chain = append(chain, ProviderEntry{Name: name})
		i = len(chain) - 1
	}
	if key != "" {
		chain[i].APIKey = key
	}
	for k, v := range opts {
		if chain[i].Options == nil {
			chain[i].Options = make(map[string]any, len(opts))
		}
		chain[i].Options[k] = v
	}
	return chain
}

// DefaultTTSChain returns the stock synthesis chain: azure, then the
// keyless gtranslate endpoint.
func DefaultTTSChain() []ProviderEntry {
	return []ProviderEntry{{Name: "azure"}, {Name: "gtranslate"}}
}

// ApplyDefaults fills every zero-valued setting with its default. The TTS
// chain defaults to azure followed by gtranslate; an azure entry without
// credentials is skipped when the chain is built.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.Audio.Name == "" {
		cfg.Providers.Audio.Name = "discord"
	}
	if len(cfg.Providers.TTS) == 0 {
		cfg.Providers.TTS = DefaultTTSChain()
	}

	r := &cfg.Radio
	if r.NewsFrequency == 0 {
		r.NewsFrequency = DefaultNewsFrequency
	}
	if r.BatchSize == 0 {
		r.BatchSize = DefaultBatchSize
	}
	if r.RearmDelay == 0 {
		r.RearmDelay = DefaultRearmDelay
	}

	if cfg.News.SnapshotPath == "" {
		cfg.News.SnapshotPath = DefaultNewsPath
	}

	s := &cfg.Speech
	if s.SweepAge == 0 {
		s.SweepAge = DefaultSweepAge
	}
	if s.ProviderTimeout == 0 {
		s.ProviderTimeout = DefaultProviderTimeout
	}
	if s.InjectTimeout == 0 {
		s.InjectTimeout = DefaultInjectTimeout
	}
	if s.Language == "" {
		s.Language = "en"
	}

	g := &cfg.Generation
	if g.Timeout == 0 {
		g.Timeout = DefaultGenTimeout
	}
	if g.Temperature == 0 {
		g.Temperature = DefaultTemperature
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = DefaultMaxTokens
	}
	if g.HistorySize == 0 {
		g.HistorySize = DefaultHistorySize
	}
	if g.RepeatThreshold == 0 {
		g.RepeatThreshold = DefaultRepeatThreshold
	}

	if cfg.Player.Volume == 0 {
		cfg.Player.Volume = DefaultMusicVolume
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	for i, e := range cfg.Providers.LLM {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm[%d].name is required", i))
			continue
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.TTS {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts[%d].name is required", i))
			continue
		}
		validateProviderName("tts", e.Name)
	}
	validateProviderName("audio", cfg.Providers.Audio.Name)
	if len(cfg.Providers.LLM) == 0 {
		slog.Warn("no LLM provider configured; announcements will use fallback phrases")
	}

	// Radio
	r := cfg.Radio
	if r.NewsFrequency < 1 {
		errs = append(errs, fmt.Errorf("radio.news_frequency %d must be at least 1", r.NewsFrequency))
	}
	if r.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("radio.batch_size %d must be at least 1", r.BatchSize))
	}
	if r.RearmDelay < 0 {
		errs = append(errs, fmt.Errorf("radio.rearm_delay %s must not be negative", r.RearmDelay))
	}
	if r.TimeCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("radio.time_check_interval %s must not be negative", r.TimeCheckInterval))
	}
	for _, q := range r.SearchQueries {
		if strings.TrimSpace(q) == "" {
			errs = append(errs, errors.New("radio.search_queries must not contain blank entries"))
			break
		}
	}
	for intent := range r.FallbackPhrases {
		if !slices.Contains(ValidIntents, intent) {
			errs = append(errs, fmt.Errorf("radio.fallback_phrases key %q is invalid; valid values: %s", intent, strings.Join(ValidIntents, ", ")))
		}
	}
	if r.AutoRadio && strings.TrimSpace(r.VoiceChannelName) == "" {
		slog.Warn("radio.auto_radio is enabled without voice_channel_name; using the default channel name")
	}

	// Speech
	if cfg.Speech.ProviderTimeout < 0 {
		errs = append(errs, fmt.Errorf("speech.provider_timeout %s must not be negative", cfg.Speech.ProviderTimeout))
	}
	if cfg.Speech.InjectTimeout < 0 {
		errs = append(errs, fmt.Errorf("speech.inject_timeout %s must not be negative", cfg.Speech.InjectTimeout))
	}

	// Generation
	g := cfg.Generation
	if g.Timeout < 0 {
		errs = append(errs, fmt.Errorf("generation.timeout %s must not be negative", g.Timeout))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f is out of range [0, 2]", g.Temperature))
	}
	if g.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens %d must not be negative", g.MaxTokens))
	}
	if g.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("generation.history_size %d must not be negative", g.HistorySize))
	}
	if g.RepeatThreshold > 1 {
		errs = append(errs, fmt.Errorf("generation.repeat_threshold %.2f must not exceed 1", g.RepeatThreshold))
	}

	// Player
	if v := cfg.Player.Volume; v < 0 || v > 2 {
		errs = append(errs, fmt.Errorf("player.volume %.2f is out of range (0, 2]", v))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
