package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/internal/radio"
)

// PresenceFromVoiceState converts a voice state update into a join event.
// Leaves, updates from the bot itself and updates that keep the user in the
// same channel (mute, deafen, stream toggles) yield ok == false. lookup
// resolves a channel ID to its name.
func PresenceFromVoiceState(selfID string, vs *discordgo.VoiceStateUpdate, lookup func(channelID string) string) (radio.PresenceEvent, bool) {
	if vs == nil || vs.VoiceState == nil {
		return radio.PresenceEvent{}, false
	}
	if vs.ChannelID == "" || vs.UserID == "" {
		return radio.PresenceEvent{}, false
	}
	if selfID != "" && vs.UserID == selfID {
		return radio.PresenceEvent{}, false
	}
	if vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID == vs.ChannelID {
		return radio.PresenceEvent{}, false
	}
	ev := radio.PresenceEvent{
		GuildID:   vs.GuildID,
		ChannelID: vs.ChannelID,
		UserID:    vs.UserID,
	}
	if lookup != nil {
		ev.ChannelName = lookup(vs.ChannelID)
	}
	return ev, true
}
