// Package mock provides in-memory implementations of [audio.Platform] and
// [audio.Connection] for unit tests.
//
//	conn := mock.NewConnection("c1")
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "g1", "c1")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/radiodj/pkg/audio"
)

// Connection is a mock [audio.Connection]. Frames written to its output stream
// are collected and can be read back with Frames.
type Connection struct {
	channelID string
	out       chan audio.Frame
	done      chan struct{}
	once      sync.Once

	mu          sync.Mutex
	frames      []audio.Frame
	disconnects int

	// DisconnectError is returned by the first Disconnect call.
	DisconnectError error
}

// NewConnection returns a Connection in channelID that accepts frames
// immediately.
func NewConnection(channelID string) *Connection {
	c := &Connection{
		channelID: channelID,
		out:       make(chan audio.Frame),
		done:      make(chan struct{}),
	}
	go c.collect()
	return c
}

func (c *Connection) collect() {
	for {
		select {
		case f := <-c.out:
			c.mu.Lock()
			c.frames = append(c.frames, f)
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// OutputStream implements [audio.Connection].
func (c *Connection) OutputStream() chan<- audio.Frame { return c.out }

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string { return c.channelID }

// Done implements [audio.Connection].
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.DisconnectError
	})
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	return err
}

// Frames returns a copy of the frames received so far.
func (c *Connection) Frames() []audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Disconnects returns how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// ConnectCall records one Connect invocation.
type ConnectCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect when set. Otherwise a fresh
	// Connection is created per call.
	ConnectResult audio.Connection

	// ConnectError, if non-nil, is returned by Connect.
	ConnectError error

	calls []ConnectCall
	conns []*Connection
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	if p.ConnectResult != nil {
		return p.ConnectResult, nil
	}
	c := NewConnection(channelID)
	p.conns = append(p.conns, c)
	return c, nil
}

// SetConnectError replaces ConnectError while the platform is in use.
func (p *Platform) SetConnectError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectError = err
}

// Calls returns a copy of the recorded Connect invocations.
func (p *Platform) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Connections returns the connections created by Connect.
func (p *Platform) Connections() []*Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Connection(nil), p.conns...)
}

var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)
