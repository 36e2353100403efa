package audio

import "time"

// Output format of every [Frame] sent to a [Connection]: 48 kHz stereo
// signed 16-bit little-endian PCM in 20 ms frames.
const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples per channel in one frame.
	FrameSamples = SampleRate * int(FrameDuration/time.Millisecond) / 1000

	// FrameBytes is the size of one frame in bytes.
	FrameBytes = FrameSamples * Channels * 2
)

// Frame is one chunk of output PCM. Data is FrameBytes long except possibly
// for the last frame of a stream.
type Frame struct {
	Data []byte
}

// Silence returns a frame of digital silence.
func Silence() Frame {
	return Frame{Data: make([]byte, FrameBytes)}
}
