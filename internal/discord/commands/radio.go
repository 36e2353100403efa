// Package commands implements the radiodj slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/internal/discord"
	"github.com/MrWong99/radiodj/internal/player"
	"github.com/MrWong99/radiodj/internal/radio"
)

// DefaultTimeout bounds the work behind one slash command.
const DefaultTimeout = 3 * time.Minute

// Player is the music side used by the commands. Implemented by
// *player.Player.
type Player interface {
	Search(ctx context.Context, query string) ([]radio.Track, error)
	IsConnected(guildID string) bool
	Connect(ctx context.Context, guildID, channelID string) error
	Enqueue(ctx context.Context, guildID string, tracks []radio.Track) error
	Skip(guildID string) error
	Disconnect(guildID string) error
	NowPlaying(guildID string) (radio.Track, bool)
	Queue(guildID string) []radio.Track
}

// AutoRadio starts and cancels the self-running radio. Implemented by
// *radio.AutoRadio.
type AutoRadio interface {
	Start(ctx context.Context, guildID, channelID string) bool
	Cancel(guildID string)
}

// Announcer speaks on-demand segments. Implemented by *radio.Scheduler.
type Announcer interface {
	AnnounceZuluTime(ctx context.Context, guildID string) error
	AnnounceNews(ctx context.Context, guildID string) error
	NewsFrequency() int
}

// Sessions exposes per-guild counters. Implemented by *radio.Sessions.
type Sessions interface {
	Lookup(guildID string) (*radio.Session, bool)
	Remove(guildID string)
}

// VoiceLocator finds a user's voice channel. Implemented by *discord.Bot.
type VoiceLocator interface {
	VoiceChannelOf(guildID, userID string) (string, error)
}

// RadioConfig holds the dependencies for /radio.
type RadioConfig struct {
	Player    Player
	AutoRadio AutoRadio
	Announcer Announcer
	Sessions  Sessions
	Voice     VoiceLocator
	Perms     *discord.PermissionChecker

	// Context is the parent of every command's context. Defaults to
	// context.Background().
	Context context.Context

	// Timeout bounds each command. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// RadioCommands holds the dependencies for /radio slash commands.
type RadioCommands struct {
	cfg RadioConfig
}

// NewRadioCommands creates a RadioCommands and adds /radio to router.
func NewRadioCommands(router *discord.CommandRouter, cfg RadioConfig) (*RadioCommands, error) {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Perms == nil {
		cfg.Perms = discord.NewPermissionChecker("")
	}
	rc := &RadioCommands{cfg: cfg}
	if err := router.Add(rc.Command()); err != nil {
		return nil, err
	}
	return rc, nil
}

// Command returns /radio with its subcommand handlers.
func (rc *RadioCommands) Command() discord.Command {
	return discord.Command{
		Definition: rc.Definition(),
		Handle: func(r discord.Responder, i *discordgo.InteractionCreate) {
			discord.RespondEphemeral(r, i, "Please use a subcommand, e.g. `/radio start` or `/radio play`.")
		},
		Subcommands: map[string]discord.HandlerFunc{
			"start":  rc.handleStart,
			"play":   rc.handlePlay,
			"skip":   rc.handleSkip,
			"stop":   rc.handleStop,
			"time":   rc.handleTime,
			"news":   rc.handleNews,
			"status": rc.handleStatus,
		},
	}
}

// Definition returns the ApplicationCommand definition for Discord.
func (rc *RadioCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "radio",
		Description: "Control the station",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Start the radio in your voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue a song by name or URL",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "Song name or URL",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current song",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop the music and leave the channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "time",
				Description: "Announce the current Zulu time",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "news",
				Description: "Read a news headline now",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show what is playing",
			},
		},
	}
}

func (rc *RadioCommands) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(rc.cfg.Context, rc.cfg.Timeout)
}

// userChannel resolves the caller's voice channel or answers the
// interaction and returns ok == false.
func (rc *RadioCommands) userChannel(r discord.Responder, i *discordgo.InteractionCreate) (string, bool) {
	channelID, err := rc.cfg.Voice.VoiceChannelOf(i.GuildID, interactionUserID(i))
	if err != nil {
		discord.RespondEphemeral(r, i, "You need to be in a voice channel first. ❌")
		return "", false
	}
	return channelID, true
}

// handleStart handles /radio start.
func (rc *RadioCommands) handleStart(r discord.Responder, i *discordgo.InteractionCreate) {
	channelID, ok := rc.userChannel(r, i)
	if !ok {
		return
	}
	discord.DeferReply(r, i)

	ctx, cancel := rc.context()
	defer cancel()

	if !rc.cfg.AutoRadio.Start(ctx, i.GuildID, channelID) {
		discord.FollowUp(r, i, "Couldn't get the radio going. Try again in a moment. ❌")
		return
	}
	discord.FollowUp(r, i, "📻 On the air!")
}

// handlePlay handles /radio play.
func (rc *RadioCommands) handlePlay(r discord.Responder, i *discordgo.InteractionCreate) {
	query := optionString(i, "query")
	if query == "" {
		discord.RespondEphemeral(r, i, "Write the name of the music you want to search. ❌")
		return
	}
	channelID, ok := rc.userChannel(r, i)
	if !ok {
		return
	}
	discord.DeferReply(r, i)

	ctx, cancel := rc.context()
	defer cancel()

	tracks, err := rc.cfg.Player.Search(ctx, query)
	if err != nil {
		discord.FollowUp(r, i, fmt.Sprintf("Search failed: %v ❌", err))
		return
	}
	if len(tracks) == 0 {
		discord.FollowUp(r, i, "No results found! ❌")
		return
	}
	if !rc.cfg.Player.IsConnected(i.GuildID) {
		if err := rc.cfg.Player.Connect(ctx, i.GuildID, channelID); err != nil {
			discord.FollowUp(r, i, "I can't join the audio channel. ❌")
			return
		}
	}
	if err := rc.cfg.Player.Enqueue(ctx, i.GuildID, tracks[:1]); err != nil {
		discord.FollowUp(r, i, fmt.Sprintf("Couldn't queue the track: %v ❌", err))
		return
	}
	discord.FollowUp(r, i, fmt.Sprintf("Track loading... 🎧 **%s**", tracks[0].Title))
}

// handleSkip handles /radio skip.
func (rc *RadioCommands) handleSkip(r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.cfg.Perms.IsDJ(i) {
		discord.RespondEphemeral(r, i, "You need the DJ role to skip songs.")
		return
	}
	switch err := rc.cfg.Player.Skip(i.GuildID); {
	case errors.Is(err, player.ErrNotConnected), errors.Is(err, player.ErrNothingPlaying):
		discord.RespondEphemeral(r, i, "Nothing is playing right now.")
	case err != nil:
		discord.RespondError(r, i, err)
	default:
		discord.RespondEphemeral(r, i, "⏭️ Skipped.")
	}
}

// handleStop handles /radio stop.
func (rc *RadioCommands) handleStop(r discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.cfg.Perms.IsDJ(i) {
		discord.RespondEphemeral(r, i, "You need the DJ role to stop the radio.")
		return
	}
	rc.cfg.AutoRadio.Cancel(i.GuildID)
	switch err := rc.cfg.Player.Disconnect(i.GuildID); {
	case errors.Is(err, player.ErrNotConnected):
		discord.RespondEphemeral(r, i, "The radio isn't on.")
	case err != nil:
		discord.RespondError(r, i, err)
	default:
		// The next start is a fresh broadcast: song count and history reset.
		rc.cfg.Sessions.Remove(i.GuildID)
		discord.RespondEphemeral(r, i, "⏹️ Radio stopped.")
	}
}

// handleTime handles /radio time.
func (rc *RadioCommands) handleTime(r discord.Responder, i *discordgo.InteractionCreate) {
	rc.announce(r, i, "🕒 Time check done.", rc.cfg.Announcer.AnnounceZuluTime)
}

// handleNews handles /radio news.
func (rc *RadioCommands) handleNews(r discord.Responder, i *discordgo.InteractionCreate) {
	rc.announce(r, i, "📰 News read.", rc.cfg.Announcer.AnnounceNews)
}

func (rc *RadioCommands) announce(r discord.Responder, i *discordgo.InteractionCreate, done string, fn func(context.Context, string) error) {
	if !rc.cfg.Player.IsConnected(i.GuildID) {
		discord.RespondEphemeral(r, i, "The radio isn't on. Use `/radio start` first.")
		return
	}
	discord.DeferReply(r, i)

	ctx, cancel := rc.context()
	defer cancel()

	switch err := fn(ctx, i.GuildID); {
	case errors.Is(err, radio.ErrNoNews):
		discord.FollowUp(r, i, "No news to read right now.")
	case err != nil:
		discord.FollowUp(r, i, fmt.Sprintf("Announcement failed: %v", err))
	default:
		discord.FollowUp(r, i, done)
	}
}

// handleStatus handles /radio status.
func (rc *RadioCommands) handleStatus(r discord.Responder, i *discordgo.InteractionCreate) {
	discord.RespondEmbed(r, i, rc.statusEmbed(i.GuildID))
}

func (rc *RadioCommands) statusEmbed(guildID string) *discordgo.MessageEmbed {
	nowPlaying := "Nothing"
	if t, ok := rc.cfg.Player.NowPlaying(guildID); ok {
		nowPlaying = trackLabel(t)
	}
	songs, lastAnnounced := 0, "None yet"
	if s, ok := rc.cfg.Sessions.Lookup(guildID); ok {
		songs = s.SongCount()
		if t := s.LastTrack(); t.Title != "" {
			lastAnnounced = trackLabel(t)
		}
	}
	return &discordgo.MessageEmbed{
		Title: "📻 Radio status",
		Color: 0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Now playing", Value: nowPlaying},
			{Name: "Queued", Value: strconv.Itoa(len(rc.cfg.Player.Queue(guildID))), Inline: true},
			{Name: "Songs played", Value: strconv.Itoa(songs), Inline: true},
			{Name: "News every", Value: fmt.Sprintf("%d songs", rc.cfg.Announcer.NewsFrequency()), Inline: true},
			{Name: "Last announced", Value: lastAnnounced},
		},
	}
}

func trackLabel(t radio.Track) string {
	if t.Author == "" {
		return t.Title
	}
	return t.Title + " by " + t.Author
}

// optionString returns the named string option of the invoked subcommand.
func optionString(i *discordgo.InteractionCreate, name string) string {
	opts := i.ApplicationCommandData().Options
	if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		opts = opts[0].Options
	}
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue()
		}
	}
	return ""
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
