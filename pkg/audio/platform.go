// Package audio defines the voice transport used to put the station on air.
//
// The two abstractions are:
//
//   - [Platform] joins a guild's voice channel and returns a [Connection].
//   - [Connection] accepts 20 ms PCM [Frame] values on a single output
//     stream and sends them to everybody in the channel.
//
// The radio only talks; it never listens, so connections have no input side.
// Platform adapters live in subpackages (audio/discord).
package audio

import "context"

// Connection is an active voice session in one guild.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// OutputStream returns the channel that frames are written to. Writes
	// block while the transport is busy, which paces the writer to real time.
	// The platform never closes this channel; writers must select on Done.
	OutputStream() chan<- Frame

	// ChannelID returns the voice channel the connection is in.
	ChannelID() string

	// Done is closed once the connection has been torn down.
	Done() <-chan struct{}

	// Disconnect leaves the voice channel. Calling it more than once returns
	// nil.
	Disconnect() error
}

// Platform joins voice channels.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins channelID in guildID. ctx bounds the join only.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}
