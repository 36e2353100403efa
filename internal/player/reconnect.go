package player

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/radiodj/pkg/audio"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 5
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ReconnectConfig controls how a dropped voice connection is restored.
type ReconnectConfig struct {
	// MaxRetries is the number of attempts before the guild is given up.
	MaxRetries int

	// Backoff is the initial wait between attempts. It doubles after each
	// failure up to MaxBackoff.
	Backoff time.Duration

	// MaxBackoff caps Backoff.
	MaxBackoff time.Duration
}

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// recover replaces a connection that closed without being asked to. It
// returns false when the guild should stop.
func (g *guild) recover(ctx context.Context) bool {
	select {
	case <-g.stop:
		return false
	default:
	}
	old := g.connection()
	channelID := old.ChannelID()
	slog.Warn("voice connection dropped, reconnecting", "guild_id", g.id, "channel_id", channelID)

	conn, err := g.p.reconnect(ctx, g.id, channelID, g.stop)
	if err != nil {
		slog.Error("voice reconnection failed", "guild_id", g.id, "err", err)
		return false
	}
	_ = old.Disconnect()
	g.setConnection(conn)
	return true
}

// reconnect retries platform.Connect with exponential backoff.
func (p *Player) reconnect(ctx context.Context, guildID, channelID string, stop <-chan struct{}) (audio.Connection, error) {
	cfg := p.cfg.Reconnect
	backoff := cfg.Backoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		conn, err := p.platform.Connect(ctx, guildID, channelID)
		if err == nil {
			slog.Info("voice reconnected", "guild_id", guildID, "attempt", attempt)
			return conn, nil
		}
		lastErr = err
		slog.Warn("reconnection attempt failed",
			"guild_id", guildID, "attempt", attempt, "max_retries", cfg.MaxRetries, "err", err)

		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stop:
			return nil, ErrNotConnected
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, cfg.MaxBackoff)
	}
	return nil, fmt.Errorf("player: reconnect after %d attempts: %w", cfg.MaxRetries, lastErr)
}
