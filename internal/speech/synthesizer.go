package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

// ErrSynthesisUnavailable is returned by [Synthesizer.Synthesize] when no
// backend produced audio.
var ErrSynthesisUnavailable = errors.New("speech: synthesis unavailable")

// Synthesizer produces audio artifacts from text. Backend failover is the
// job of the tts.Provider it wraps, typically a resilience.TTSFallback.
type Synthesizer struct {
	tts   tts.Provider
	store *ArtifactStore
}

// NewSynthesizer returns a Synthesizer writing through store.
func NewSynthesizer(p tts.Provider, store *ArtifactStore) *Synthesizer {
	return &Synthesizer{tts: p, store: store}
}

// Synthesize converts text to speech and writes it to a new artifact.
// The caller owns the returned artifact and must release it. On failure no
// file is left on disk and the error wraps ErrSynthesisUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	ctx, span := observe.StartSpan(ctx, "speech.synthesize")
	defer span.End()

	if s.tts == nil {
		return nil, fmt.Errorf("%w: no backend configured", ErrSynthesisUnavailable)
	}

	start := time.Now()
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisUnavailable, err)
	}
	if audio == nil || len(audio.Data) == 0 {
		return nil, fmt.Errorf("%w: backend returned no audio", ErrSynthesisUnavailable)
	}

	a, err := s.store.Create(audio.Data, audio.Format.Ext())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisUnavailable, err)
	}
	observe.Logger(ctx).Debug("speech synthesised",
		"path", a.Path, "format", string(audio.Format), "bytes", len(audio.Data),
		"duration", time.Since(start))
	return a, nil
}

// Release releases a through the underlying store.
func (s *Synthesizer) Release(a *Artifact) error {
	return s.store.Release(a)
}

// Store returns the artifact store.
func (s *Synthesizer) Store() *ArtifactStore { return s.store }
