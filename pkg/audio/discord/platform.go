// Package discord provides an [audio.Platform] backed by Discord voice
// channels via bwmarrin/discordgo. Outgoing PCM frames are Opus-encoded with
// gopus and handed to discordgo, which paces them at 20 ms.
//
// The bot joins self-deafened: it never decodes incoming audio.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/pkg/audio"
)

var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] on top of a gateway session owned by
// the bot layer.
type Platform struct {
	session *discordgo.Session
}

// New returns a Platform using session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Connect joins channelID in guildID, unmuted and self-deafened.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return newConnection(vc, channelID), nil
}
