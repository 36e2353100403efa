package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/radiodj/internal/config"
	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/resilience"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
	"github.com/MrWong99/radiodj/pkg/provider/llm/anyllm"
	"github.com/MrWong99/radiodj/pkg/provider/llm/openai"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
	"github.com/MrWong99/radiodj/pkg/provider/tts/azure"
	"github.com/MrWong99/radiodj/pkg/provider/tts/coqui"
	"github.com/MrWong99/radiodj/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/radiodj/pkg/provider/tts/gtranslate"
)

// registerBuiltinProviders wires all built-in LLM and TTS factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation package. language is the default speech
// language for engines that need one.
func registerBuiltinProviders(reg *config.Registry, language string) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.Option("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the same pattern: optional APIKey +
	// optional BaseURL. ollama and the llama servers are local and usually
	// only need BaseURL.
	for _, providerName := range anyllm.Backends {
		if providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("azure", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []azure.Option
		if entry.Model != "" {
			opts = append(opts, azure.WithVoice(entry.Model))
		}
		if f := entry.Option("output_format"); f != "" {
			opts = append(opts, azure.WithOutputFormat(f))
		}
		if rate, pitch := entry.Option("rate"), entry.Option("pitch"); rate != "" || pitch != "" {
			opts = append(opts, azure.WithProsody(rate, pitch))
		}
		if entry.BaseURL != "" {
			opts = append(opts, azure.WithEndpoint(entry.BaseURL))
		}
		return azure.New(entry.APIKey, entry.Option("region"), opts...)
	})

	reg.RegisterTTS("gtranslate", func(entry config.ProviderEntry) (tts.Provider, error) {
		lang := entry.Option("language")
		if lang == "" {
			lang = language
		}
		opts := []gtranslate.Option{gtranslate.WithLanguage(lang)}
		if entry.BaseURL != "" {
			opts = append(opts, gtranslate.WithHost(entry.BaseURL))
		}
		if slow, err := strconv.ParseBool(entry.Option("slow")); err == nil {
			opts = append(opts, gtranslate.WithSlow(slow))
		}
		return gtranslate.New(opts...), nil
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if m := entry.Option("model"); m != "" {
			opts = append(opts, elevenlabs.WithModel(m))
		}
		if f := entry.Option("output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		// Model carries the voice ID, matching azure where it names the voice.
		return elevenlabs.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		lang := entry.Option("language")
		if lang == "" {
			lang = language
		}
		opts := []coqui.Option{coqui.WithLanguage(lang)}
		if entry.Model != "" {
			opts = append(opts, coqui.WithSpeaker(entry.Model))
		}
		if mode := entry.Option("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	for _, kind := range []string{"llm", "tts"} {
		for _, name := range config.ValidProviderNames[kind] {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildLLM instantiates the configured LLM chain behind a fallback group. It
// returns nil when no entry could be built, so announcements use the
// phrasebook.
func buildLLM(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (llm.Provider, error) {
	chain, skipped, err := reg.CreateLLMChain(cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}
	for _, e := range skipped {
		slog.Warn("llm provider skipped", "err", e)
	}
	if len(chain) == 0 {
		return nil, nil
	}

	fb := resilience.NewLLMFallback(fallbackConfig("llm", cfg, m))
	for _, p := range chain {
		fb.Add(p.Name, p.Provider)
		slog.Info("provider created", "kind", "llm", "name", p.Name)
	}
	return fb, nil
}

// buildTTS instantiates the configured TTS chain behind a fallback group.
// At least one engine is required.
func buildTTS(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (tts.Provider, error) {
	chain, skipped, err := reg.CreateTTSChain(cfg.Providers.TTS)
	if err != nil {
		return nil, err
	}
	for _, e := range skipped {
		slog.Info("tts provider not configured, skipping", "err", e)
	}
	if len(chain) == 0 {
		return nil, errors.New("no TTS provider could be created")
	}

	fb := resilience.NewTTSFallback(fallbackConfig("tts", cfg, m))
	for _, p := range chain {
		fb.Add(p.Name, p.Provider)
		slog.Info("provider created", "kind", "tts", "name", p.Name)
	}
	return fb, nil
}

func fallbackConfig(kind string, cfg *config.Config, m *observe.Metrics) resilience.FallbackConfig {
	timeout := cfg.Speech.ProviderTimeout
	if kind == "llm" {
		timeout = cfg.Generation.Timeout
	}
	return resilience.FallbackConfig{
		AttemptTimeout: timeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "kind", kind, "provider", name, "from", from, "to", to)
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		OnAttempt: func(a resilience.Attempt) {
			if a.Err != nil && !a.Skipped {
				slog.Warn("provider attempt failed", "kind", kind, "provider", a.Provider, "err", a.Err)
			}
			m.RecordProviderAttempt(context.Background(), kind, a.Provider, a.Duration, a.Err, a.Skipped)
		},
	}
}

// describeChain renders a provider chain for the startup summary.
func describeChain(entries []config.ProviderEntry) string {
	if len(entries) == 0 {
		return "(not configured)"
	}
	s := ""
	for i, e := range entries {
		if i > 0 {
			s += " → "
		}
		s += e.Name
	}
	return s
}

// printProvider writes one startup summary row.
func printProvider(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
