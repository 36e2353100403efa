// Package player streams queued tracks into guild voice connections and lets
// announcements interrupt them.
//
// Each connected guild owns one goroutine that pops tracks off its queue,
// decodes them to 20 ms PCM frames and writes them to the voice connection.
// [Player.Inject] hands that goroutine a local audio file; it pauses the
// current track at the next frame boundary, plays the file and resumes the
// track where it left off.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/radio"
	"github.com/MrWong99/radiodj/pkg/audio"
)

var (
	// ErrNotConnected is returned for operations on a guild without a voice
	// connection.
	ErrNotConnected = errors.New("player: not connected")

	// ErrNothingPlaying is returned by Skip when no track is playing.
	ErrNothingPlaying = errors.New("player: nothing playing")
)

// Decoder opens a source (a URL or a local path) as a raw PCM stream in the
// [audio] output format. volume scales the signal; 1 leaves it unchanged.
type Decoder interface {
	Open(ctx context.Context, source string, volume float64) (io.ReadCloser, error)
}

// Searcher finds tracks for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]radio.Track, error)
}

// Events are callbacks fired by the player. They run on their own goroutine
// and may block.
type Events struct {
	// OnTrackStart fires when a track begins playing.
	OnTrackStart func(ctx context.Context, guildID string, t radio.Track)

	// OnQueueEmpty fires when the last queued track finished.
	OnQueueEmpty func(ctx context.Context, guildID, channelID string)
}

// Config tunes a [Player].
type Config struct {
	// MusicVolume scales tracks. Defaults to 0.35.
	MusicVolume float64

	// VoiceVolume scales injected announcements. Defaults to 1.
	VoiceVolume float64

	// Reconnect controls recovery from dropped voice connections.
	Reconnect ReconnectConfig
}

// Option configures a [Player].
type Option func(*Player)

// WithEvents sets the event callbacks.
func WithEvents(ev Events) Option { return func(p *Player) { p.events = ev } }

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option { return func(p *Player) { p.metrics = m } }

// Player manages per-guild playback. It implements radio.Transport and
// radio.Injector.
type Player struct {
	platform audio.Platform
	decoder  Decoder
	searcher Searcher
	events   Events
	cfg      Config
	metrics  *observe.Metrics

	connecting singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	guilds map[string]*guild
}

// New returns a Player.
func New(platform audio.Platform, dec Decoder, search Searcher, cfg Config, opts ...Option) *Player {
	if cfg.MusicVolume <= 0 {
		cfg.MusicVolume = 0.35
	}
	if cfg.VoiceVolume <= 0 {
		cfg.VoiceVolume = 1
	}
	cfg.Reconnect = cfg.Reconnect.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		platform: platform,
		decoder:  dec,
		searcher: search,
		cfg:      cfg,
		baseCtx:  ctx,
		cancel:   cancel,
		guilds:   make(map[string]*guild),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Search implements radio.Transport.
func (p *Player) Search(ctx context.Context, query string) ([]radio.Track, error) {
	if p.searcher == nil {
		return nil, errors.New("player: no search backend configured")
	}
	return p.searcher.Search(ctx, query)
}

func (p *Player) guild(guildID string) *guild {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.guilds[guildID]
}

// IsConnected implements radio.Transport.
func (p *Player) IsConnected(guildID string) bool {
	return p.guild(guildID) != nil
}

// IsPlaying implements radio.Transport. A guild with queued tracks counts as
// playing.
func (p *Player) IsPlaying(guildID string) bool {
	g := p.guild(guildID)
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil || len(g.queue) > 0
}

// Connect implements radio.Transport. Connecting a guild that already has a
// connection is a no-op.
func (p *Player) Connect(ctx context.Context, guildID, channelID string) error {
	_, err, _ := p.connecting.Do(guildID, func() (any, error) {
		if p.IsConnected(guildID) {
			return nil, nil
		}
		conn, err := p.platform.Connect(ctx, guildID, channelID)
		if err != nil {
			return nil, fmt.Errorf("player: connect guild %s: %w", guildID, err)
		}

		g := newGuild(p, guildID, conn)
		p.mu.Lock()
		p.guilds[guildID] = g
		p.mu.Unlock()
		p.metrics.ActiveGuilds.Add(ctx, 1)

		slog.Info("voice connected", "guild_id", guildID, "channel_id", channelID)
		go g.run(p.baseCtx)
		return nil, nil
	})
	return err
}

// Enqueue implements radio.Transport.
func (p *Player) Enqueue(_ context.Context, guildID string, tracks []radio.Track) error {
	g := p.guild(guildID)
	if g == nil {
		return ErrNotConnected
	}
	g.enqueue(tracks)
	return nil
}

// Inject implements radio.Injector. It returns once the file has been played,
// ctx is done or the guild disconnected.
func (p *Player) Inject(ctx context.Context, guildID, path string) error {
	g := p.guild(guildID)
	if g == nil {
		return ErrNotConnected
	}
	req := injectRequest{ctx: ctx, path: path, done: make(chan error, 1)}
	select {
	case g.inject <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.finished:
		return ErrNotConnected
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Skip ends the current track.
func (p *Player) Skip(guildID string) error {
	g := p.guild(guildID)
	if g == nil {
		return ErrNotConnected
	}
	if _, ok := g.nowPlaying(); !ok {
		return ErrNothingPlaying
	}
	select {
	case g.skip <- struct{}{}:
	default:
	}
	return nil
}

// Queue returns the tracks waiting after the current one.
func (p *Player) Queue(guildID string) []radio.Track {
	g := p.guild(guildID)
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]radio.Track(nil), g.queue...)
}

// NowPlaying returns the current track.
func (p *Player) NowPlaying(guildID string) (radio.Track, bool) {
	g := p.guild(guildID)
	if g == nil {
		return radio.Track{}, false
	}
	return g.nowPlaying()
}

// ChannelID returns the voice channel the guild is connected to.
func (p *Player) ChannelID(guildID string) (string, bool) {
	g := p.guild(guildID)
	if g == nil {
		return "", false
	}
	return g.connection().ChannelID(), true
}

// Guilds returns the IDs of all connected guilds in sorted order.
func (p *Player) Guilds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.guilds))
}

// Disconnect stops playback, clears the queue and leaves the voice channel.
func (p *Player) Disconnect(guildID string) error {
	g := p.guild(guildID)
	if g == nil {
		return ErrNotConnected
	}
	g.halt()
	<-g.finished
	return nil
}

// Close disconnects every guild.
func (p *Player) Close() error {
	p.mu.Lock()
	guilds := make([]*guild, 0, len(p.guilds))
	for _, g := range p.guilds {
		guilds = append(guilds, g)
	}
	p.mu.Unlock()

	for _, g := range guilds {
		g.halt()
	}
	for _, g := range guilds {
		<-g.finished
	}
	p.cancel()
	return nil
}

func (p *Player) remove(g *guild) {
	p.mu.Lock()
	if p.guilds[g.id] == g {
		delete(p.guilds, g.id)
	}
	p.mu.Unlock()
	p.metrics.ActiveGuilds.Add(context.Background(), -1)
}

func (p *Player) fireTrackStart(ctx context.Context, guildID string, t radio.Track) {
	slog.Info("now playing", "guild_id", guildID, "title", t.Title, "author", t.Author)
	if p.events.OnTrackStart != nil {
		go p.events.OnTrackStart(ctx, guildID, t)
	}
}

func (p *Player) fireQueueEmpty(ctx context.Context, guildID, channelID string) {
	slog.Info("queue finished", "guild_id", guildID)
	if p.events.OnQueueEmpty != nil {
		go p.events.OnQueueEmpty(ctx, guildID, channelID)
	}
}

var (
	_ radio.Transport = (*Player)(nil)
	_ radio.Injector  = (*Player)(nil)
)
