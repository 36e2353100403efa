// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Audio: &tts.Audio{Data: []byte("ID3"), Format: tts.FormatMP3}}
//	clip, err := p.Synthesize(ctx, "Next up: Space Oddity")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when Err is nil. A nil Audio yields a
	// one-byte MP3 placeholder.
	Audio *tts.Audio

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// Texts records the text of every Synthesize call in order.
	Texts []string
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Audio == nil {
		return &tts.Audio{Data: []byte{0xff}, Format: tts.FormatMP3}, nil
	}
	return p.Audio, nil
}

// SetResult replaces Audio and Err while calls may be in flight.
func (p *Provider) SetResult(audio *tts.Audio, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Audio, p.Err = audio, err
}

// CallCount returns how many times Synthesize was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}

// Spoken returns a copy of Texts that is safe to read while synthesis
// continues on other goroutines.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Texts...)
}

var _ tts.Provider = (*Provider)(nil)
