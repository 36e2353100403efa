// Package discord provides the Discord bot layer for radiodj. It owns the
// discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, turns voice state updates into presence events and
// checks DJ role permissions.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/internal/radio"
	"github.com/MrWong99/radiodj/pkg/audio"
	discordaudio "github.com/MrWong99/radiodj/pkg/audio/discord"
)

// ErrNotInVoice is returned by [Bot.VoiceChannelOf] when the user has no
// voice state in the guild.
var ErrNotInVoice = errors.New("discord: user is not in a voice channel")

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID restricts command registration to one guild. Empty registers
	// global commands.
	GuildID string

	// DJRoleID gates playback-control commands.
	DJRoleID string

	// Status is shown as the bot's activity.
	Status string
}

// PresenceFunc receives presence events.
type PresenceFunc func(ctx context.Context, ev radio.PresenceEvent)

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	router    *CommandRouter
	perms     *PermissionChecker
	guildID   string
	status    string
	commands  []*discordgo.ApplicationCommand
	presence  PresenceFunc
	ctx       context.Context
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction and
// voice state handlers. ctx is handed to presence callbacks.
func New(ctx context.Context, cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		session:  session,
		platform: discordaudio.New(session),
		router:   NewCommandRouter(),
		perms:    NewPermissionChecker(cfg.DJRoleID),
		guildID:  cfg.GuildID,
		status:   cfg.Status,
		ctx:      ctx,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(SessionResponder(s), i)
	})
	session.AddHandler(b.onVoiceStateUpdate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Platform returns the audio.Platform for voice channel connections.
func (b *Bot) Platform() audio.Platform {
	return b.platform
}

// GuildID returns the configured command guild.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// OnPresence sets the callback for users joining voice channels.
func (b *Bot) OnPresence(fn PresenceFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presence = fn
}

// VoiceChannelOf returns the voice channel userID is connected to in
// guildID, from the gateway state cache.
func (b *Bot) VoiceChannelOf(guildID, userID string) (string, error) {
	vs, err := b.Session().State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return vs.ChannelID, nil
}

// SendEmbed posts embed to channelID.
func (b *Bot) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.Session().ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	var selfID string
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	ev, ok := PresenceFromVoiceState(selfID, vs, func(id string) string {
		return channelName(s, id)
	})
	if !ok {
		return
	}

	b.mu.RLock()
	fn := b.presence
	b.mu.RUnlock()
	if fn != nil {
		fn(b.ctx, ev)
	}
}

// channelName resolves a channel name from the state cache, falling back to
// the REST API.
func channelName(s *discordgo.Session, channelID string) string {
	if s.State != nil {
		if ch, err := s.State.Channel(channelID); err == nil && ch != nil {
			return ch.Name
		}
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		slog.Debug("discord: channel lookup failed", "channel_id", channelID, "err", err)
		return ""
	}
	return ch.Name
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	if b.status != "" {
		if err := b.session.UpdateGameStatus(0, b.status); err != nil {
			slog.Warn("discord: failed to set status", "err", err)
		}
	}

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
