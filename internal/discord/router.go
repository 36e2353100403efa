package discord

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc answers one slash command interaction.
type HandlerFunc func(r Responder, i *discordgo.InteractionCreate)

// Command is a top-level slash command together with its handlers.
type Command struct {
	Definition *discordgo.ApplicationCommand

	// Handle runs when the command is invoked without a subcommand.
	Handle HandlerFunc

	// Subcommands maps a subcommand name to its handler.
	Subcommands map[string]HandlerFunc
}

// CommandRouter dispatches interactions to the commands added to it.
type CommandRouter struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewCommandRouter returns an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{commands: make(map[string]Command)}
}

// Add registers c under its definition's name. Adding the same name twice is
// an error.
func (r *CommandRouter) Add(c Command) error {
	if c.Definition == nil || c.Definition.Name == "" {
		return fmt.Errorf("discord: command without a name")
	}
	name := c.Definition.Name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("discord: command %q already registered", name)
	}
	r.commands[name] = c
	return nil
}

// ApplicationCommands returns the definitions to register with Discord,
// ordered by name.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, c := range r.commands {
		defs = append(defs, c.Definition)
	}
	slices.SortFunc(defs, func(a, b *discordgo.ApplicationCommand) int {
		return strings.Compare(a.Name, b.Name)
	})
	return defs
}

// Handle dispatches an application command interaction. Other interaction
// types are ignored. A panicking handler is logged and the user gets an
// ephemeral error instead of a stuck "thinking" state.
func (r *CommandRouter) Handle(resp Responder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		slog.Debug("discord: ignoring interaction", "type", i.Type)
		return
	}
	data := i.ApplicationCommandData()
	h, route := r.lookup(data)
	if h == nil {
		slog.Warn("discord: unknown command", "route", route)
		RespondEphemeral(resp, i, "Unknown command.")
		return
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("discord: command handler panicked", "route", route, "panic", p)
			RespondEphemeral(resp, i, "Something went wrong handling that command.")
		}
	}()
	h(resp, i)
}

// lookup resolves the handler for data and the route used in logs, e.g.
// "radio/skip".
func (r *CommandRouter) lookup(data discordgo.ApplicationCommandInteractionData) (HandlerFunc, string) {
	r.mu.RLock()
	c, ok := r.commands[data.Name]
	r.mu.RUnlock()

	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub := data.Options[0].Name
		route := data.Name + "/" + sub
		if !ok {
			return nil, route
		}
		return c.Subcommands[sub], route
	}
	if !ok {
		return nil, data.Name
	}
	return c.Handle, data.Name
}
