package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/radiodj/pkg/audio"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	llm   map[string]func(ProviderEntry) (llm.Provider, error)
	tts   map[string]func(ProviderEntry) (tts.Provider, error)
	audio map[string]func(ProviderEntry) (audio.Platform, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:   make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts:   make(map[string]func(ProviderEntry) (tts.Provider, error)),
		audio: make(map[string]func(ProviderEntry) (audio.Platform, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterAudio registers an audio platform factory under name.
func (r *Registry) RegisterAudio(name string, factory func(ProviderEntry) (audio.Platform, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAudio instantiates an audio platform using the factory registered under entry.Name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.Platform, error) {
	r.mu.RLock()
	factory, ok := r.audio[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLMChain instantiates every entry in order. Entries whose factory
// reports a missing credential are skipped with a warning in the returned
// list; any other failure aborts.
func (r *Registry) CreateLLMChain(entries []ProviderEntry) ([]NamedLLM, []error, error) {
	var out []NamedLLM
	var skipped []error
	for _, e := range entries {
		p, err := r.CreateLLM(e)
		if err != nil {
			if errors.Is(err, ErrProviderNotRegistered) {
				return nil, nil, err
			}
			skipped = append(skipped, fmt.Errorf("llm/%s: %w", e.Name, err))
			continue
		}
		out = append(out, NamedLLM{Name: e.Name, Provider: p})
	}
	return out, skipped, nil
}

// CreateTTSChain instantiates every entry in order. Entries whose factory
// returns [tts.ErrNotConfigured] are reported as skipped; any other failure
// aborts.
func (r *Registry) CreateTTSChain(entries []ProviderEntry) ([]NamedTTS, []error, error) {
	var out []NamedTTS
	var skipped []error
	for _, e := range entries {
		p, err := r.CreateTTS(e)
		if err != nil {
			if errors.Is(err, tts.ErrNotConfigured) {
				skipped = append(skipped, fmt.Errorf("tts/%s: %w", e.Name, err))
				continue
			}
			return nil, nil, err
		}
		out = append(out, NamedTTS{Name: e.Name, Provider: p})
	}
	return out, skipped, nil
}

// NamedLLM pairs an LLM provider with its configured name.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// NamedTTS pairs a TTS provider with its configured name.
type NamedTTS struct {
	Name     string
	Provider tts.Provider
}
