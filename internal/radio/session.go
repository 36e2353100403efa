package radio

import (
	"sync"

	"github.com/MrWong99/radiodj/internal/announce"
)

// Session is the per-guild radio state.
type Session struct {
	GuildID string

	// History holds the guild's recent generated announcements.
	History *announce.History

	// cycle serialises announcements within the guild.
	cycle sync.Mutex

	mu        sync.Mutex
	songCount int
	lastTrack Track
}

// SongCount returns the number of committed track cycles.
func (s *Session) SongCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songCount
}

// LastTrack returns the most recently started track.
func (s *Session) LastTrack() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTrack
}

// Commit records t as the started track and returns the new song count.
func (s *Session) Commit(t Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songCount++
	s.lastTrack = t
	return s.songCount
}

// Sessions is a registry of per-guild sessions. Sessions are created on first
// use.
type Sessions struct {
	historySize int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions returns an empty registry whose sessions remember historySize
// announcements.
func NewSessions(historySize int) *Sessions {
	return &Sessions{historySize: historySize, sessions: make(map[string]*Session)}
}

// Get returns the session for guildID, creating it if needed.
func (r *Sessions) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	if !ok {
		s = &Session{GuildID: guildID, History: announce.NewHistory(r.historySize)}
		r.sessions[guildID] = s
	}
	return s
}

// Lookup returns the session for guildID without creating one.
func (r *Sessions) Lookup(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Remove forgets guildID's session.
func (r *Sessions) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}
