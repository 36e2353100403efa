package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/MrWong99/radiodj/internal/radio"
	"github.com/MrWong99/radiodj/pkg/audio"
)

type injectRequest struct {
	ctx  context.Context
	path string
	done chan error
}

type sendResult int

const (
	sent sendResult = iota
	skipped
	stopped
)

// guild is the playback state of one voice connection. The run goroutine
// owns decoding and sending; the mutex guards what other goroutines read.
type guild struct {
	id string
	p  *Player

	mu      sync.Mutex
	conn    audio.Connection
	queue   []radio.Track
	current *radio.Track

	wake   chan struct{}
	skip   chan struct{}
	inject chan injectRequest

	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

func newGuild(p *Player, id string, conn audio.Connection) *guild {
	return &guild{
		id:       id,
		p:        p,
		conn:     conn,
		wake:     make(chan struct{}, 1),
		skip:     make(chan struct{}, 1),
		inject:   make(chan injectRequest),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (g *guild) connection() audio.Connection {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn
}

func (g *guild) setConnection(c audio.Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = c
}

func (g *guild) nowPlaying() (radio.Track, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return radio.Track{}, false
	}
	return *g.current, true
}

func (g *guild) enqueue(tracks []radio.Track) {
	g.mu.Lock()
	g.queue = append(g.queue, tracks...)
	g.mu.Unlock()
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// next pops the queue head and marks it current.
func (g *guild) next() (radio.Track, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		g.current = nil
		return radio.Track{}, false
	}
	t := g.queue[0]
	g.queue = g.queue[1:]
	g.current = &t
	return t, true
}

func (g *guild) halt() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *guild) run(ctx context.Context) {
	log := slog.With("guild_id", g.id)
	defer close(g.finished)
	defer func() {
		g.mu.Lock()
		g.queue = nil
		g.current = nil
		conn := g.conn
		g.mu.Unlock()
		if err := conn.Disconnect(); err != nil {
			log.Warn("voice disconnect failed", "err", err)
		}
		g.p.remove(g)
		log.Info("voice disconnected")
	}()

	played := false
	for {
		t, ok := g.next()
		if !ok {
			if played {
				played = false
				g.p.fireQueueEmpty(ctx, g.id, g.connection().ChannelID())
			}
			if !g.idle(ctx) {
				return
			}
			continue
		}
		played = true
		if !g.play(ctx, t) {
			return
		}
	}
}

// idle waits for work while nothing is queued. Injections play over silence.
func (g *guild) idle(ctx context.Context) bool {
	for {
		conn := g.connection()
		select {
		case <-g.wake:
			return true
		case req := <-g.inject:
			if !g.playInjection(ctx, req) {
				return false
			}
			return true
		case <-conn.Done():
			if !g.recover(ctx) {
				return false
			}
		case <-g.stop:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// play streams t to the connection. It returns false when the guild must
// stop.
func (g *guild) play(ctx context.Context, t radio.Track) bool {
	log := slog.With("guild_id", g.id, "title", t.Title)

	// Drop a skip that arrived for the previous track.
	select {
	case <-g.skip:
	default:
	}

	g.p.fireTrackStart(ctx, g.id, t)

	src, err := g.p.decoder.Open(ctx, t.URL, g.p.cfg.MusicVolume)
	if err != nil {
		log.Warn("failed to open track, skipping", "err", err)
		return true
	}
	defer src.Close()

	for {
		frame, err := readFrame(src)
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			log.Warn("track stream failed, skipping", "err", err)
			return true
		}
		select {
		case <-g.skip:
			log.Info("track skipped")
			return true
		default:
		}
		switch g.send(ctx, frame, true) {
		case skipped:
			log.Info("track skipped")
			return true
		case stopped:
			return false
		}
	}
}

// send writes one frame. Music frames (interruptible) yield to injections
// and skips while waiting for the connection.
func (g *guild) send(ctx context.Context, f audio.Frame, interruptible bool) sendResult {
	var inject <-chan injectRequest
	var skip <-chan struct{}
	if interruptible {
		inject, skip = g.inject, g.skip
	}
	for {
		conn := g.connection()
		select {
		case conn.OutputStream() <- f:
			return sent
		case req := <-inject:
			if !g.playInjection(ctx, req) {
				return stopped
			}
		case <-skip:
			return skipped
		case <-conn.Done():
			if !g.recover(ctx) {
				return stopped
			}
		case <-g.stop:
			return stopped
		case <-ctx.Done():
			return stopped
		}
	}
}

// playInjection plays req.path to completion and answers req. It returns
// false when the guild must stop.
func (g *guild) playInjection(ctx context.Context, req injectRequest) bool {
	src, err := g.p.decoder.Open(req.ctx, req.path, g.p.cfg.VoiceVolume)
	if err != nil {
		req.done <- fmt.Errorf("player: open announcement: %w", err)
		return true
	}
	defer src.Close()

	for {
		if err := req.ctx.Err(); err != nil {
			req.done <- err
			return true
		}
		frame, err := readFrame(src)
		if errors.Is(err, io.EOF) {
			req.done <- nil
			return true
		}
		if err != nil {
			req.done <- fmt.Errorf("player: decode announcement: %w", err)
			return true
		}
		if g.send(ctx, frame, false) == stopped {
			req.done <- ErrNotConnected
			return false
		}
	}
}

// readFrame reads one frame, zero-padding a short final frame. It returns
// io.EOF once the stream is exhausted.
func readFrame(r io.Reader) (audio.Frame, error) {
	buf := make([]byte, audio.FrameBytes)
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return audio.Frame{Data: buf}, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(buf[n:])
		return audio.Frame{Data: buf}, nil
	default:
		return audio.Frame{}, err
	}
}
