// Package mock provides test doubles for the radio collaborators.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/MrWong99/radiodj/internal/radio"
)

// InjectCall records one Inject invocation.
type InjectCall struct {
	GuildID string
	Path    string

	// Existed reports whether the file existed when Inject was called.
	Existed bool

	// HasDeadline reports whether the context carried a deadline.
	HasDeadline bool
}

// Injector is a mock implementation of radio.Injector.
type Injector struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Inject.
	Err error

	// OnInject, if set, runs inside Inject before it returns.
	OnInject func(ctx context.Context, guildID, path string)

	calls []InjectCall
}

// Inject implements radio.Injector.
func (m *Injector) Inject(ctx context.Context, guildID, path string) error {
	_, statErr := os.Stat(path)
	_, hasDeadline := ctx.Deadline()

	m.mu.Lock()
	m.calls = append(m.calls, InjectCall{GuildID: guildID, Path: path, Existed: statErr == nil, HasDeadline: hasDeadline})
	fn, err := m.OnInject, m.Err
	m.mu.Unlock()

	if fn != nil {
		fn(ctx, guildID, path)
	}
	return err
}

// Calls returns a copy of the recorded invocations.
func (m *Injector) Calls() []InjectCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InjectCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Transport is a mock implementation of radio.Transport.
type Transport struct {
	mu sync.Mutex

	// Results is returned by Search.
	Results []radio.Track

	// SearchErr, ConnectErr and EnqueueErr are returned by the respective
	// methods when non-nil.
	SearchErr  error
	ConnectErr error
	EnqueueErr error

	// Connected and Playing back IsConnected and IsPlaying per guild.
	Connected map[string]bool
	Playing   map[string]bool

	// SearchGate, if non-nil, blocks Search until it is closed.
	SearchGate chan struct{}

	Queries  []string
	Connects []string
	Enqueued map[string][]radio.Track
}

// Search implements radio.Transport.
func (m *Transport) Search(ctx context.Context, query string) ([]radio.Track, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	gate := m.SearchGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	out := make([]radio.Track, len(m.Results))
	copy(out, m.Results)
	return out, nil
}

// IsConnected implements radio.Transport.
func (m *Transport) IsConnected(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connected[guildID]
}

// Connect implements radio.Transport.
func (m *Transport) Connect(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connects = append(m.Connects, guildID+"/"+channelID)
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.Connected == nil {
		m.Connected = make(map[string]bool)
	}
	m.Connected[guildID] = true
	return nil
}

// IsPlaying implements radio.Transport.
func (m *Transport) IsPlaying(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Playing[guildID]
}

// Enqueue implements radio.Transport.
func (m *Transport) Enqueue(_ context.Context, guildID string, tracks []radio.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	if m.Enqueued == nil {
		m.Enqueued = make(map[string][]radio.Track)
	}
	m.Enqueued[guildID] = append(m.Enqueued[guildID], tracks...)
	return nil
}

// QueryCount returns the number of Search calls.
func (m *Transport) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// EnqueuedFor returns a copy of the tracks enqueued for guildID.
func (m *Transport) EnqueuedFor(guildID string) []radio.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]radio.Track, len(m.Enqueued[guildID]))
	copy(out, m.Enqueued[guildID])
	return out
}

var (
	_ radio.Injector  = (*Injector)(nil)
	_ radio.Transport = (*Transport)(nil)
)
