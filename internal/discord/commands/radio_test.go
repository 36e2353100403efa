package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/internal/discord"
	"github.com/MrWong99/radiodj/internal/discord/mock"
	"github.com/MrWong99/radiodj/internal/player"
	"github.com/MrWong99/radiodj/internal/radio"
)

type fakePlayer struct {
	mu         sync.Mutex
	results    []radio.Track
	searchErr  error
	connectErr error
	skipErr    error
	connected  bool
	current    *radio.Track
	queue      []radio.Track
	connects   []string
	enqueued   []radio.Track
	disconnect int
}

func (f *fakePlayer) Search(context.Context, string) ([]radio.Track, error) {
	return f.results, f.searchErr
}

func (f *fakePlayer) IsConnected(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePlayer) Connect(_ context.Context, _, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, channelID)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakePlayer) Enqueue(_ context.Context, _ string, tracks []radio.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, tracks...)
	return nil
}

func (f *fakePlayer) Skip(string) error { return f.skipErr }

func (f *fakePlayer) Disconnect(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return player.ErrNotConnected
	}
	f.connected = false
	f.disconnect++
	return nil
}

func (f *fakePlayer) NowPlaying(string) (radio.Track, bool) {
	if f.current == nil {
		return radio.Track{}, false
	}
	return *f.current, true
}

func (f *fakePlayer) Queue(string) []radio.Track { return f.queue }

type fakeAuto struct {
	ok        bool
	starts    []string
	cancelled []string
}

func (f *fakeAuto) Start(_ context.Context, _, channelID string) bool {
	f.starts = append(f.starts, channelID)
	return f.ok
}

func (f *fakeAuto) Cancel(guildID string) { f.cancelled = append(f.cancelled, guildID) }

type fakeAnnouncer struct {
	timeErr error
	newsErr error
	calls   []string
}

func (f *fakeAnnouncer) AnnounceZuluTime(_ context.Context, guildID string) error {
	f.calls = append(f.calls, "time:"+guildID)
	return f.timeErr
}

func (f *fakeAnnouncer) AnnounceNews(_ context.Context, guildID string) error {
	f.calls = append(f.calls, "news:"+guildID)
	return f.newsErr
}

func (f *fakeAnnouncer) NewsFrequency() int { return 3 }

type fakeVoice map[string]string

func (v fakeVoice) VoiceChannelOf(_, userID string) (string, error) {
	if ch, ok := v[userID]; ok {
		return ch, nil
	}
	return "", discord.ErrNotInVoice
}

type harness struct {
	router   *discord.CommandRouter
	player   *fakePlayer
	auto     *fakeAuto
	ann      *fakeAnnouncer
	sessions *radio.Sessions
	resp     *mock.InteractionResponder
}

func newHarness(djRole string) *harness {
	h := &harness{
		router:   discord.NewCommandRouter(),
		player:   &fakePlayer{},
		auto:     &fakeAuto{ok: true},
		ann:      &fakeAnnouncer{},
		sessions: radio.NewSessions(5),
		resp:     &mock.InteractionResponder{},
	}
	if _, err := NewRadioCommands(h.router, RadioConfig{
		Player:    h.player,
		AutoRadio: h.auto,
		Announcer: h.ann,
		Sessions:  h.sessions,
		Voice:     fakeVoice{"listener": "vc-1"},
		Perms:     discord.NewPermissionChecker(djRole),
	}); err != nil {
		panic(err)
	}
	return h
}

// invoke runs /radio <sub> as userID with the given string options.
func (h *harness) invoke(sub, userID string, roles []string, opts map[string]string) string {
	var subOpts []*discordgo.ApplicationCommandInteractionDataOption
	for name, v := range opts {
		subOpts = append(subOpts, &discordgo.ApplicationCommandInteractionDataOption{
			Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v,
		})
	}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "radio",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: subOpts},
			},
		},
	}}
	h.router.Handle(h.resp, i)
	return h.resp.LastText()
}

func TestRadioStart(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	if got := h.invoke("start", "stranger", nil, nil); !strings.Contains(got, "voice channel") {
		t.Errorf("reply = %q, want voice channel hint", got)
	}
	if len(h.auto.starts) != 0 {
		t.Fatal("Start called without a voice channel")
	}

	if got := h.invoke("start", "listener", nil, nil); !strings.Contains(got, "On the air") {
		t.Errorf("reply = %q", got)
	}
	if len(h.auto.starts) != 1 || h.auto.starts[0] != "vc-1" {
		t.Errorf("starts = %v", h.auto.starts)
	}
	if h.resp.Responses[len(h.resp.Responses)-1].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Error("start should defer before working")
	}

	h.auto.ok = false
	if got := h.invoke("start", "listener", nil, nil); !strings.Contains(got, "Couldn't") {
		t.Errorf("reply = %q, want failure", got)
	}
}

func TestRadioPlay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    []radio.Track
		searchErr  error
		connectErr error
		want       string
		enqueued   int
	}{
		{"found", []radio.Track{{Title: "Space Oddity"}, {Title: "Starman"}}, nil, nil, "Track loading... 🎧 **Space Oddity**", 1},
		{"no results", nil, nil, nil, "No results found! ❌", 0},
		{"search error", nil, errors.New("quota"), nil, "Search failed", 0},
		{"connect error", []radio.Track{{Title: "x"}}, nil, errors.New("denied"), "I can't join the audio channel. ❌", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness("")
			h.player.results = tt.results
			h.player.searchErr = tt.searchErr
			h.player.connectErr = tt.connectErr

			got := h.invoke("play", "listener", nil, map[string]string{"query": "bowie"})
			if !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
			if len(h.player.enqueued) != tt.enqueued {
				t.Errorf("enqueued %d tracks, want %d", len(h.player.enqueued), tt.enqueued)
			}
		})
	}
}

func TestRadioPlay_SkipsConnectWhenConnected(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	h.player.connected = true
	h.player.results = []radio.Track{{Title: "a"}}
	h.invoke("play", "listener", nil, map[string]string{"query": "a"})
	if len(h.player.connects) != 0 {
		t.Errorf("connects = %v, want none", h.player.connects)
	}
}

func TestRadioSkip(t *testing.T) {
	t.Parallel()

	h := newHarness("dj")
	if got := h.invoke("skip", "listener", nil, nil); !strings.Contains(got, "DJ role") {
		t.Errorf("reply = %q, want DJ role refusal", got)
	}
	if got := h.invoke("skip", "listener", []string{"dj"}, nil); got != "⏭️ Skipped." {
		t.Errorf("reply = %q", got)
	}
	h.player.skipErr = player.ErrNothingPlaying
	if got := h.invoke("skip", "listener", []string{"dj"}, nil); got != "Nothing is playing right now." {
		t.Errorf("reply = %q", got)
	}
}

func TestRadioStop(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	h.sessions.Get("g1").Commit(radio.Track{Title: "A"})
	if got := h.invoke("stop", "listener", nil, nil); got != "The radio isn't on." {
		t.Errorf("reply = %q", got)
	}
	if _, ok := h.sessions.Lookup("g1"); !ok {
		t.Fatal("failed stop dropped the session")
	}
	h.player.connected = true
	if got := h.invoke("stop", "listener", nil, nil); got != "⏹️ Radio stopped." {
		t.Errorf("reply = %q", got)
	}
	if h.player.disconnect != 1 {
		t.Errorf("disconnects = %d, want 1", h.player.disconnect)
	}
	if len(h.auto.cancelled) != 2 {
		t.Errorf("auto-radio cancels = %v, want one per stop", h.auto.cancelled)
	}
	if _, ok := h.sessions.Lookup("g1"); ok {
		t.Error("session survived /radio stop")
	}
}

func TestRadioAnnouncements(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	if got := h.invoke("time", "listener", nil, nil); !strings.Contains(got, "isn't on") {
		t.Errorf("reply = %q, want not-on refusal", got)
	}
	if len(h.ann.calls) != 0 {
		t.Fatalf("announcer called while disconnected: %v", h.ann.calls)
	}

	h.player.connected = true
	if got := h.invoke("time", "listener", nil, nil); got != "🕒 Time check done." {
		t.Errorf("time reply = %q", got)
	}
	if got := h.invoke("news", "listener", nil, nil); got != "📰 News read." {
		t.Errorf("news reply = %q", got)
	}
	h.ann.newsErr = radio.ErrNoNews
	if got := h.invoke("news", "listener", nil, nil); got != "No news to read right now." {
		t.Errorf("empty news reply = %q", got)
	}
	h.ann.timeErr = errors.New("synthesis down")
	if got := h.invoke("time", "listener", nil, nil); !strings.Contains(got, "synthesis down") {
		t.Errorf("failed time reply = %q", got)
	}
	want := []string{"time:g1", "news:g1", "news:g1", "time:g1"}
	if strings.Join(h.ann.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", h.ann.calls, want)
	}
}

func TestRadioStatus(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	h.player.current = &radio.Track{Title: "Space Oddity", Author: "David Bowie"}
	h.player.queue = []radio.Track{{}, {}}
	h.invoke("status", "listener", nil, nil)

	resp := h.resp.LastResponse()
	if resp == nil || len(resp.Data.Embeds) != 1 {
		t.Fatalf("expected one embed, got %+v", resp)
	}
	fields := resp.Data.Embeds[0].Fields
	if fields[0].Value != "Space Oddity by David Bowie" {
		t.Errorf("now playing = %q", fields[0].Value)
	}
	if fields[1].Value != "2" {
		t.Errorf("queued = %q", fields[1].Value)
	}
	if fields[2].Value != "0" {
		t.Errorf("songs played = %q", fields[2].Value)
	}
	if fields[3].Value != "3 songs" {
		t.Errorf("news every = %q", fields[3].Value)
	}
	if fields[4].Value != "None yet" {
		t.Errorf("last announced = %q", fields[4].Value)
	}

	sess := h.sessions.Get("g1")
	sess.Commit(radio.Track{Title: "Heroes", Author: "David Bowie"})
	sess.Commit(radio.Track{Title: "Starman"})
	h.invoke("status", "listener", nil, nil)
	fields = h.resp.LastResponse().Data.Embeds[0].Fields
	if fields[2].Value != "2" {
		t.Errorf("songs played = %q, want 2", fields[2].Value)
	}
	if fields[4].Value != "Starman" {
		t.Errorf("last announced = %q, want Starman", fields[4].Value)
	}
}

func TestOptionString(t *testing.T) {
	t.Parallel()

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "radio",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "play", Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "lofi"},
				},
			}},
		},
	}}
	if got := optionString(i, "query"); got != "lofi" {
		t.Errorf("optionString = %q, want lofi", got)
	}
	if got := optionString(i, "missing"); got != "" {
		t.Errorf("optionString(missing) = %q", got)
	}
}
