package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/internal/radio"
)

// embedColorGreen is the embed sidebar color for now-playing cards.
const embedColorGreen = 0x2ECC71

// EmbedSender posts embeds to a text channel. Implemented by *Bot.
type EmbedSender interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// NowPlaying posts a card to a text channel whenever a track starts.
type NowPlaying struct {
	sender    EmbedSender
	channelID string
	station   string
}

// NewNowPlaying returns a NowPlaying posting to channelID.
func NewNowPlaying(sender EmbedSender, channelID, station string) *NowPlaying {
	return &NowPlaying{sender: sender, channelID: channelID, station: station}
}

// Post sends the card for t. Failures are logged.
func (n *NowPlaying) Post(ctx context.Context, guildID string, t radio.Track) {
	if err := n.sender.SendEmbed(n.channelID, NowPlayingEmbed(n.station, t)); err != nil {
		observe.Logger(ctx).Warn("discord: failed to post now playing",
			"guild_id", guildID, "channel_id", n.channelID, "err", err)
	}
}

// NowPlayingEmbed renders the card for t.
func NowPlayingEmbed(station string, t radio.Track) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("**%s**", t.Title)
	if t.Author != "" {
		desc += " by " + t.Author
	}
	e := &discordgo.MessageEmbed{
		Title:       "🎶 Now playing",
		Description: desc,
		URL:         t.URL,
		Color:       embedColorGreen,
	}
	if t.Duration > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   "Length",
			Value:  formatDuration(t.Duration),
			Inline: true,
		})
	}
	if station != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: station}
	}
	return e
}

// formatDuration renders d as m:ss or h:mm:ss.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
