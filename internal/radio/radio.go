// Package radio drives the on-air behaviour of the station: what is said
// between tracks and when music starts on its own.
//
// The [Scheduler] reacts to track starts by optionally reading a news item,
// introducing the track and counting it. [AutoRadio] starts a batch of music
// when a listener joins the station's voice channel and re-arms itself when
// the queue runs dry. Both keep per-guild state in [Sessions].
package radio

import (
	"context"
	"time"

	"github.com/MrWong99/radiodj/internal/announce"
	"github.com/MrWong99/radiodj/internal/news"
	"github.com/MrWong99/radiodj/internal/speech"
)

// Track is a playable item as returned by a search.
type Track struct {
	Title    string
	Author   string
	URL      string
	Duration time.Duration
}

// PresenceEvent describes a user joining a voice channel.
type PresenceEvent struct {
	GuildID     string
	ChannelID   string
	ChannelName string
	UserID      string
}

// Generator produces announcement text. Implemented by *announce.Generator.
type Generator interface {
	Generate(ctx context.Context, h *announce.History, intent announce.Intent, subj announce.Subject) announce.Announcement
}

// Synthesizer turns text into an audio artifact. Implemented by
// *speech.Synthesizer.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*speech.Artifact, error)
	Release(a *speech.Artifact) error
}

// Injector plays an audio file over whatever is playing in a guild and
// returns once playback of the file finished.
type Injector interface {
	Inject(ctx context.Context, guildID, path string) error
}

// TrackState reports what a guild is playing. Implemented by *player.Player.
type TrackState interface {
	NowPlaying(guildID string) (Track, bool)
}

// NewsSource supplies news items. Implemented by *news.Store.
type NewsSource interface {
	Random() (news.Item, bool)
}

// Transport is the music side of a guild: search, voice connection and
// queue.
type Transport interface {
	// Search returns tracks matching query from the video search engine.
	Search(ctx context.Context, query string) ([]Track, error)

	// IsConnected reports whether the bot has a voice connection in guildID.
	IsConnected(guildID string) bool

	// Connect joins channelID in guildID.
	Connect(ctx context.Context, guildID, channelID string) error

	// IsPlaying reports whether music is playing in guildID.
	IsPlaying(guildID string) bool

	// Enqueue appends tracks to the guild's queue, starting playback when
	// idle.
	Enqueue(ctx context.Context, guildID string, tracks []Track) error
}
