package radio

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/radiodj/internal/observe"
)

// Auto-radio defaults.
const (
	DefaultBatchSize   = 20
	DefaultRearmDelay  = 5 * time.Second
	DefaultChannelName = "📻 | WF4S Haulin' Radio"
)

// DefaultQueries is the search rotation used to pick auto-radio music.
var DefaultQueries = []string{
	"house music mix",
	"electronic music mix",
	"chill music mix",
	"lofi hip hop",
	"synthwave mix",
}

// AutoRadioConfig tunes an [AutoRadio].
type AutoRadioConfig struct {
	// Enabled turns presence triggers and queue re-arming on.
	Enabled bool

	// ChannelName is the voice channel whose joins start the radio.
	ChannelName string

	// Queries is the search rotation.
	Queries []string

	// BatchSize caps how many search results are enqueued per start.
	BatchSize int

	// RearmDelay is the pause between an empty queue and the next start.
	RearmDelay time.Duration
}

func (c AutoRadioConfig) withDefaults() AutoRadioConfig {
	if c.ChannelName == "" {
		c.ChannelName = DefaultChannelName
	}
	if len(c.Queries) == 0 {
		c.Queries = DefaultQueries
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RearmDelay <= 0 {
		c.RearmDelay = DefaultRearmDelay
	}
	return c
}

// Timer is a pending callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AutoRadioOption configures an [AutoRadio].
type AutoRadioOption func(*AutoRadio)

// WithQueryPicker replaces the random index source used to choose a query.
func WithQueryPicker(pick func(n int) int) AutoRadioOption {
	return func(a *AutoRadio) { a.pick = pick }
}

// WithAfterFunc replaces time.AfterFunc for re-arm timers.
func WithAfterFunc(fn func(d time.Duration, f func()) Timer) AutoRadioOption {
	return func(a *AutoRadio) { a.afterFunc = fn }
}

// WithAutoRadioMetrics sets the metrics sink. Defaults to
// observe.DefaultMetrics().
func WithAutoRadioMetrics(m *observe.Metrics) AutoRadioOption {
	return func(a *AutoRadio) { a.metrics = m }
}

// AutoRadio starts music without a human asking for it.
type AutoRadio struct {
	transport Transport
	cfg       AutoRadioConfig
	pick      func(n int) int
	afterFunc func(d time.Duration, f func()) Timer
	metrics   *observe.Metrics
	group     singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[string]*rearm
	closed bool
}

// rearm is one scheduled restart. A callback only acts while its own rearm
// is still the one registered for the guild.
type rearm struct{ timer Timer }

// NewAutoRadio returns an AutoRadio driving t.
func NewAutoRadio(t Transport, cfg AutoRadioConfig, opts ...AutoRadioOption) *AutoRadio {
	ctx, cancel := context.WithCancel(context.Background())
	a := &AutoRadio{
		transport: t,
		cfg:       cfg.withDefaults(),
		pick:      rand.IntN,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		baseCtx:   ctx,
		cancel:    cancel,
		timers:    make(map[string]*rearm),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Enabled reports whether presence triggers are active.
func (a *AutoRadio) Enabled() bool { return a.cfg.Enabled }

// ChannelName returns the configured target channel name.
func (a *AutoRadio) ChannelName() string { return a.cfg.ChannelName }

// OnPresenceChange starts the radio when a user joins the target channel of
// a guild that is not already playing. It reports whether a start was
// attempted and succeeded.
func (a *AutoRadio) OnPresenceChange(ctx context.Context, ev PresenceEvent) bool {
	if !a.cfg.Enabled || ev.ChannelID == "" || ev.ChannelName != a.cfg.ChannelName {
		return false
	}
	if a.transport.IsPlaying(ev.GuildID) {
		return false
	}
	observe.Logger(ctx).Info("listener joined radio channel, starting auto-radio",
		"guild_id", ev.GuildID, "channel_id", ev.ChannelID, "user_id", ev.UserID)
	return a.Start(ctx, ev.GuildID, ev.ChannelID)
}

// Start searches one query from the rotation, joins channelID when not yet
// connected and enqueues up to BatchSize results. Concurrent calls for the
// same guild share one attempt. It reports success.
func (a *AutoRadio) Start(ctx context.Context, guildID, channelID string) bool {
	v, _, shared := a.group.Do(guildID, func() (any, error) {
		return a.start(ctx, guildID, channelID), nil
	})
	if shared {
		observe.Logger(ctx).Debug("auto-radio start joined in-flight attempt", "guild_id", guildID)
	}
	return v.(bool)
}

func (a *AutoRadio) start(ctx context.Context, guildID, channelID string) bool {
	ctx, span := observe.StartSpan(ctx, "radio.autoradio_start")
	defer span.End()
	log := observe.Logger(ctx).With("guild_id", guildID)

	ok, err := a.tryStart(ctx, guildID, channelID)
	if err != nil {
		log.Warn("auto-radio start failed", "err", err)
		a.metrics.RecordAutoRadioStart(ctx, observe.StatusError)
		return false
	}
	if !ok {
		a.metrics.RecordAutoRadioStart(ctx, "no_results")
		return false
	}
	a.metrics.RecordAutoRadioStart(ctx, observe.StatusOK)
	return true
}

func (a *AutoRadio) tryStart(ctx context.Context, guildID, channelID string) (bool, error) {
	log := observe.Logger(ctx).With("guild_id", guildID)

	query := a.cfg.Queries[a.pick(len(a.cfg.Queries))]
	tracks, err := a.transport.Search(ctx, query)
	if err != nil {
		return false, fmt.Errorf("search %q: %w", query, err)
	}
	if len(tracks) == 0 {
		log.Warn("auto-radio search returned no tracks", "query", query)
		return false, nil
	}

	if !a.transport.IsConnected(guildID) {
		if err := a.transport.Connect(ctx, guildID, channelID); err != nil {
			return false, fmt.Errorf("connect: %w", err)
		}
	}

	if len(tracks) > a.cfg.BatchSize {
		tracks = tracks[:a.cfg.BatchSize]
	}
	if err := a.transport.Enqueue(ctx, guildID, tracks); err != nil {
		return false, fmt.Errorf("enqueue: %w", err)
	}
	log.Info("auto-radio started", "query", query, "tracks", len(tracks))
	return true, nil
}

// OnQueueEmpty schedules a new start in guildID after RearmDelay. At most one
// re-arm is pending per guild; further calls while one is pending are
// ignored.
func (a *AutoRadio) OnQueueEmpty(ctx context.Context, guildID, channelID string) {
	if !a.cfg.Enabled || channelID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if _, pending := a.timers[guildID]; pending {
		return
	}
	observe.Logger(ctx).Info("queue ended, re-arming auto-radio", "guild_id", guildID, "delay", a.cfg.RearmDelay)
	r := &rearm{}
	r.timer = a.afterFunc(a.cfg.RearmDelay, func() {
		a.mu.Lock()
		current := a.timers[guildID] == r
		if current {
			delete(a.timers, guildID)
		}
		live := current && !a.closed
		a.mu.Unlock()
		if !live {
			return
		}
		a.Start(a.baseCtx, guildID, channelID)
	})
	a.timers[guildID] = r
}

// Pending reports whether a re-arm is scheduled for guildID.
func (a *AutoRadio) Pending(guildID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[guildID]
	return ok
}

// Cancel drops a pending re-arm for guildID.
func (a *AutoRadio) Cancel(guildID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.timers[guildID]; ok {
		r.timer.Stop()
		delete(a.timers, guildID)
	}
}

// Close stops all pending re-arms and cancels in-flight timer starts.
func (a *AutoRadio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	for id, r := range a.timers {
		r.timer.Stop()
		delete(a.timers, id)
	}
	a.cancel()
	return nil
}
