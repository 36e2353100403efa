package resilience

import (
	"context"

	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] over a [FallbackGroup] of speech
// backends. The first backend that returns a clip wins; later backends are
// not contacted.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates an empty TTSFallback. Register backends with Add in
// priority order.
func NewTTSFallback(cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup[tts.Provider](cfg)}
}

// Add registers a backend.
func (f *TTSFallback) Add(name string, p tts.Provider) {
	f.group.Add(name, p)
}

// Len returns the number of registered backends.
func (f *TTSFallback) Len() int { return f.group.Len() }

// Names returns the backend names in try order.
func (f *TTSFallback) Names() []string { return f.group.Names() }

// Synthesize returns the clip of the first backend that succeeds.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p tts.Provider) (*tts.Audio, error) {
		return p.Synthesize(ctx, text)
	})
}
