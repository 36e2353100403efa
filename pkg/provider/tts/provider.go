// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Azure Cognitive Services,
// the Google Translate speech endpoint, ElevenLabs, a local Coqui server) and
// turns one announcement into one encoded audio clip. Clips are short, so the
// interface is batch rather than streaming: the caller persists the returned
// bytes to a file and hands the file to the voice transport.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by provider constructors when required
// credentials are absent. Callers treat it as "skip this provider" rather
// than as a startup failure.
var ErrNotConfigured = errors.New("tts: provider not configured")

// Format identifies the container/codec of synthesised audio.
type Format string

const (
	// FormatMP3 is an MPEG-1/2 Layer III stream.
	FormatMP3 Format = "mp3"

	// FormatWAV is a RIFF/WAVE file with 16-bit PCM samples.
	FormatWAV Format = "wav"
)

// Ext returns the file extension for f without the leading dot.
func (f Format) Ext() string {
	if f == "" {
		return "bin"
	}
	return string(f)
}

// Audio is one synthesised clip.
type Audio struct {
	// Data is the encoded audio payload. Never empty on success.
	Data []byte

	// Format describes how Data is encoded.
	Format Format
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a single audio clip.
	//
	// Returns an error if the backend rejects the request, returns an empty
	// body, or ctx is cancelled first. Implementations must not retry
	// internally; failover is the caller's concern.
	Synthesize(ctx context.Context, text string) (*Audio, error)
}
